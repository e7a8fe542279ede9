// Package githubtasks implements a backend.Backend over GitHub Issues.
// Fields the canonical Task model has but GitHub Issues don't (priority,
// milestone flag, due/start dates, parent, dependencies) are encoded as
// synthetic "key:value" labels and stripped back out before a Task ever
// reaches the sync core, so they never leak into Task.Tags.
package githubtasks

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/alexbrand/tasksync/internal/backend"
	"github.com/alexbrand/tasksync/internal/credentials"
	gh "github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"
)

const (
	priorityLabelPrefix = "priority:"
	dueLabelPrefix      = "due:"
	startLabelPrefix    = "start:"
	parentLabelPrefix   = "parent:"
	dependsLabelPrefix  = "depends:"
	blocksLabelPrefix   = "blocks:"
	milestoneLabel      = "milestone"
)

// syntheticLabelPrefixes lists every prefix (or exact label) used to encode
// a canonical Task field that GitHub Issues has no native home for. Any
// label matching one of these is stripped from Task.Tags.
var syntheticLabelPrefixes = []string{
	priorityLabelPrefix, dueLabelPrefix, startLabelPrefix,
	parentLabelPrefix, dependsLabelPrefix, blocksLabelPrefix,
}

func isSyntheticLabel(name string) bool {
	if name == milestoneLabel {
		return true
	}
	for _, prefix := range syntheticLabelPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Backend implements backend.Backend over a GitHub repository's Issues.
type Backend struct {
	id     string
	client *gh.Client
	owner  string
	repo   string
	ctx    context.Context

	projects *ProjectsClient
	dueField *ProjectField
}

// Option configures a Backend at construction time.
type Option func(*Backend) error

// WithProjectsV2 enables Projects v2 date-field sync for DueOn, using
// dueFieldName (defaults to "Due Date") as the project's date field.
func WithProjectsV2(token string, projectNum int, dueFieldName string) Option {
	return func(b *Backend) error {
		if dueFieldName == "" {
			dueFieldName = "Due Date"
		}
		pc, err := NewProjectsClient(b.ctx, token, b.owner, b.repo, projectNum, dueFieldName)
		if err != nil {
			return fmt.Errorf("githubtasks: create projects client: %w", err)
		}
		field, err := pc.GetDateField()
		if err != nil {
			return fmt.Errorf("githubtasks: get due date field: %w", err)
		}
		b.projects = pc
		b.dueField = field
		return nil
	}
}

// New creates a Backend identified as id against owner/repo, authenticating
// with the token returned by credentials.GetGitHubToken. The API base URL
// defaults to api.github.com; GITHUB_API_URL overrides it, the same way
// lineartasks.New honors LINEAR_API_URL.
func New(id, repoSlug string, opts ...Option) (*Backend, error) {
	parts := strings.SplitN(repoSlug, "/", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("githubtasks: invalid repo %q, want owner/repo", repoSlug)
	}

	token, err := credentials.GetGitHubToken()
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)

	client := gh.NewClient(tc)
	if apiURL := os.Getenv("GITHUB_API_URL"); apiURL != "" {
		base, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("githubtasks: invalid GITHUB_API_URL: %w", err)
		}
		if !strings.HasSuffix(base.Path, "/") {
			base.Path += "/"
		}
		client.BaseURL = base
	}

	b := &Backend{
		id:     id,
		client: client,
		owner:  parts[0],
		repo:   parts[1],
		ctx:    ctx,
	}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Backend) ID() string { return b.id }

func (b *Backend) ListTasks() ([]backend.Task, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       "all",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var tasks []backend.Task
	for {
		issues, resp, err := b.client.Issues.ListByRepo(b.ctx, b.owner, b.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("githubtasks: list issues: %w", err)
		}
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			task, err := b.issueToTask(issue)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, *task)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return tasks, nil
}

func (b *Backend) GetTask(gid string) (*backend.Task, error) {
	issueNum, err := parseIssueNumber(gid)
	if err != nil {
		return nil, err
	}
	issue, resp, err := b.client.Issues.Get(b.ctx, b.owner, b.repo, issueNum)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return nil, &backend.NotFoundError{Gid: gid}
		}
		return nil, fmt.Errorf("githubtasks: get issue: %w", err)
	}
	return b.issueToTask(issue)
}

func (b *Backend) CreateTask(input backend.TaskInput) (*backend.Task, error) {
	issueReq := &gh.IssueRequest{Title: gh.String(input.Name)}
	if input.Notes != nil {
		issueReq.Body = input.Notes
	}

	var labels []string
	if input.Priority != nil {
		labels = append(labels, priorityLabelPrefix+string(*input.Priority))
	}
	if input.IsMilestone {
		labels = append(labels, milestoneLabel)
	}
	if input.DueOn != nil && b.dueField == nil {
		labels = append(labels, dueLabelPrefix+*input.DueOn)
	}
	if len(labels) > 0 {
		issueReq.Labels = &labels
	}

	issue, _, err := b.client.Issues.Create(b.ctx, b.owner, b.repo, issueReq)
	if err != nil {
		return nil, fmt.Errorf("githubtasks: create issue: %w", err)
	}

	if input.DueOn != nil && b.dueField != nil {
		if err := b.setDueDate(issue.GetNumber(), *input.DueOn); err != nil {
			return nil, err
		}
	}

	return b.issueToTask(issue)
}

func (b *Backend) UpdateTask(gid string, partial backend.TaskPartial) (*backend.Task, error) {
	issueNum, err := parseIssueNumber(gid)
	if err != nil {
		return nil, err
	}

	issue, _, err := b.client.Issues.Get(b.ctx, b.owner, b.repo, issueNum)
	if err != nil {
		return nil, fmt.Errorf("githubtasks: get issue: %w", err)
	}

	issueReq := &gh.IssueRequest{}
	if partial.Name != nil {
		issueReq.Title = partial.Name
	}
	if partial.Notes != nil {
		issueReq.Body = *partial.Notes
	}
	if partial.Completed != nil {
		if *partial.Completed {
			issueReq.State = gh.String("closed")
		} else {
			issueReq.State = gh.String("open")
		}
	}
	if partial.Assignee != nil {
		if *partial.Assignee == nil || **partial.Assignee == "" {
			issueReq.Assignees = &[]string{}
		} else {
			issueReq.Assignees = &[]string{**partial.Assignee}
		}
	}

	var labels []string
	if partial.Tags != nil {
		labels = append(labels, *partial.Tags...)
	} else {
		for _, l := range issue.Labels {
			if !isSyntheticLabel(l.GetName()) {
				labels = append(labels, l.GetName())
			}
		}
	}
	if partial.Priority != nil {
		if *partial.Priority != nil {
			labels = append(labels, priorityLabelPrefix+string(**partial.Priority))
		}
	} else if p := existingLabelValue(issue, priorityLabelPrefix); p != "" {
		labels = append(labels, priorityLabelPrefix+p)
	}
	if partial.IsMilestone != nil {
		if *partial.IsMilestone {
			labels = append(labels, milestoneLabel)
		}
	} else if hasLabel(issue, milestoneLabel) {
		labels = append(labels, milestoneLabel)
	}
	if partial.Parent != nil {
		if *partial.Parent != nil {
			labels = append(labels, parentLabelPrefix+**partial.Parent)
		}
	} else if p := existingLabelValue(issue, parentLabelPrefix); p != "" {
		labels = append(labels, parentLabelPrefix+p)
	}
	if partial.DueOn != nil && b.dueField == nil {
		if *partial.DueOn != nil {
			labels = append(labels, dueLabelPrefix+**partial.DueOn)
		}
	} else if b.dueField == nil {
		if d := existingLabelValue(issue, dueLabelPrefix); d != "" {
			labels = append(labels, dueLabelPrefix+d)
		}
	}
	if partial.StartOn != nil {
		if *partial.StartOn != nil {
			labels = append(labels, startLabelPrefix+**partial.StartOn)
		}
	} else if s := existingLabelValue(issue, startLabelPrefix); s != "" {
		labels = append(labels, startLabelPrefix+s)
	}
	for _, l := range issue.Labels {
		if name := l.GetName(); strings.HasPrefix(name, dependsLabelPrefix) || strings.HasPrefix(name, blocksLabelPrefix) {
			labels = append(labels, name)
		}
	}
	issueReq.Labels = &labels

	updated, _, err := b.client.Issues.Edit(b.ctx, b.owner, b.repo, issueNum, issueReq)
	if err != nil {
		return nil, fmt.Errorf("githubtasks: update issue: %w", err)
	}

	if partial.DueOn != nil && b.dueField != nil && *partial.DueOn != nil {
		if err := b.setDueDate(issueNum, **partial.DueOn); err != nil {
			return nil, err
		}
	}

	return b.issueToTask(updated)
}

func (b *Backend) DeleteTask(gid string) error {
	issueNum, err := parseIssueNumber(gid)
	if err != nil {
		return err
	}
	_, _, err = b.client.Issues.Edit(b.ctx, b.owner, b.repo, issueNum, &gh.IssueRequest{
		State: gh.String("closed"),
	})
	if err != nil {
		return fmt.Errorf("githubtasks: close issue: %w", err)
	}
	return nil
}

func (b *Backend) ListTags() ([]backend.Tag, error) {
	opts := &gh.ListOptions{PerPage: 100}
	var tags []backend.Tag
	for {
		labels, resp, err := b.client.Issues.ListLabels(b.ctx, b.owner, b.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("githubtasks: list labels: %w", err)
		}
		for _, l := range labels {
			if isSyntheticLabel(l.GetName()) {
				continue
			}
			tags = append(tags, backend.Tag{Gid: l.GetName(), Name: l.GetName()})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return tags, nil
}

func (b *Backend) CreateTag(name string) (*backend.Tag, error) {
	_, _, err := b.client.Issues.CreateLabel(b.ctx, b.owner, b.repo, &gh.Label{Name: gh.String(name)})
	if err != nil && !strings.Contains(err.Error(), "already_exists") {
		return nil, fmt.Errorf("githubtasks: create label: %w", err)
	}
	return &backend.Tag{Gid: name, Name: name}, nil
}

// ListSections returns the repository's milestones: a GitHub Issue belongs
// to at most one milestone, which this backend treats as section
// membership (distinct from Task.IsMilestone's synthetic "milestone" label,
// which marks a single issue as itself being a milestone-equivalent task).
func (b *Backend) ListSections() ([]backend.Section, error) {
	opts := &gh.MilestoneListOptions{State: "all", ListOptions: gh.ListOptions{PerPage: 100}}
	var sections []backend.Section
	for {
		milestones, resp, err := b.client.Issues.ListMilestones(b.ctx, b.owner, b.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("githubtasks: list milestones: %w", err)
		}
		for _, m := range milestones {
			sections = append(sections, backend.Section{
				Gid:  strconv.Itoa(m.GetNumber()),
				Name: m.GetTitle(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return sections, nil
}

func (b *Backend) CreateSection(name string) (*backend.Section, error) {
	milestone, _, err := b.client.Issues.CreateMilestone(b.ctx, b.owner, b.repo, &gh.Milestone{Title: gh.String(name)})
	if err != nil {
		return nil, fmt.Errorf("githubtasks: create milestone: %w", err)
	}
	return &backend.Section{Gid: strconv.Itoa(milestone.GetNumber()), Name: milestone.GetTitle()}, nil
}

func (b *Backend) setDueDate(issueNum int, dueOn string) error {
	itemID, err := b.projects.GetOrAddItem(issueNum)
	if err != nil {
		return fmt.Errorf("githubtasks: add issue to project: %w", err)
	}
	if err := b.projects.UpdateDateField(itemID, b.dueField.ID, dueOn); err != nil {
		return fmt.Errorf("githubtasks: set due date: %w", err)
	}
	return nil
}

func existingLabelValue(issue *gh.Issue, prefix string) string {
	for _, l := range issue.Labels {
		if strings.HasPrefix(l.GetName(), prefix) {
			return strings.TrimPrefix(l.GetName(), prefix)
		}
	}
	return ""
}

func hasLabel(issue *gh.Issue, name string) bool {
	for _, l := range issue.Labels {
		if l.GetName() == name {
			return true
		}
	}
	return false
}

func parseIssueNumber(gid string) (int, error) {
	trimmed := strings.TrimPrefix(gid, "GH-")
	num, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("githubtasks: invalid gid %q: %w", gid, err)
	}
	return num, nil
}

func (b *Backend) issueToTask(issue *gh.Issue) (*backend.Task, error) {
	task := &backend.Task{
		Gid:       fmt.Sprintf("GH-%d", issue.GetNumber()),
		Name:      issue.GetTitle(),
		Completed: issue.GetState() == "closed",
	}
	if body := issue.GetBody(); body != "" {
		task.Notes = &body
	}
	if len(issue.Assignees) > 0 {
		login := issue.Assignees[0].GetLogin()
		task.Assignee = &login
		gid := strconv.FormatInt(issue.Assignees[0].GetID(), 10)
		task.AssigneeGid = &gid
	}
	if issue.Milestone != nil {
		task.Memberships = []backend.Section{{
			Gid:  strconv.Itoa(issue.Milestone.GetNumber()),
			Name: issue.Milestone.GetTitle(),
		}}
	}

	for _, label := range issue.Labels {
		name := label.GetName()
		switch {
		case strings.HasPrefix(name, priorityLabelPrefix):
			p := backend.Priority(strings.TrimPrefix(name, priorityLabelPrefix))
			task.Priority = &p
		case name == milestoneLabel:
			task.IsMilestone = true
		case strings.HasPrefix(name, dueLabelPrefix):
			d := strings.TrimPrefix(name, dueLabelPrefix)
			task.DueOn = &d
		case strings.HasPrefix(name, startLabelPrefix):
			s := strings.TrimPrefix(name, startLabelPrefix)
			task.StartOn = &s
		case strings.HasPrefix(name, parentLabelPrefix):
			p := strings.TrimPrefix(name, parentLabelPrefix)
			task.Parent = &p
		case strings.HasPrefix(name, dependsLabelPrefix):
			task.Dependencies = append(task.Dependencies, strings.TrimPrefix(name, dependsLabelPrefix))
		case strings.HasPrefix(name, blocksLabelPrefix):
			task.Dependents = append(task.Dependents, strings.TrimPrefix(name, blocksLabelPrefix))
		default:
			task.Tags = append(task.Tags, name)
		}
	}

	if b.dueField != nil && task.DueOn == nil {
		dueOn, err := b.projects.GetDateValue(issue.GetNumber(), b.dueField.ID)
		if err != nil {
			return nil, fmt.Errorf("githubtasks: get due date: %w", err)
		}
		if dueOn != "" {
			task.DueOn = &dueOn
		}
	}

	return task, nil
}
