// Package lineartasks implements a Task backend backed by Linear Issues,
// using Linear's hand-rolled GraphQL API the same way the repository's
// GitHub Issues backend talks REST: native fields where Linear has a home
// for them (priority, dueDate, project membership), synthetic labels where
// it doesn't (start date, parent, dependencies, milestone marker).
package lineartasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alexbrand/tasksync/internal/backend"
	"github.com/alexbrand/tasksync/internal/credentials"
)

const (
	defaultLinearAPIEndpoint = "https://api.linear.app/graphql"

	startLabelPrefix   = "start:"
	parentLabelPrefix  = "parent:"
	dependsLabelPrefix = "depends:"
	blocksLabelPrefix  = "blocks:"
	milestoneLabel     = "milestone"
)

var syntheticLabelPrefixes = []string{startLabelPrefix, parentLabelPrefix, dependsLabelPrefix, blocksLabelPrefix}

// isSyntheticLabel reports whether name encodes a Task field rather than a
// genuine user tag.
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

// Priority mapping between Linear's numeric priority (0-4) and the
// canonical three-level scale. Linear's "Urgent" collapses into High; there
// is no canonical slot for it.
var linearPriorityToCanonical = map[int]backend.Priority{
	1: backend.PriorityHigh,
	2: backend.PriorityHigh,
	3: backend.PriorityMedium,
	4: backend.PriorityLow,
}

var canonicalPriorityToLinear = map[backend.Priority]int{
	backend.PriorityHigh:   2,
	backend.PriorityMedium: 3,
	backend.PriorityLow:    4,
}

// Backend implements backend.Backend using Linear Issues.
type Backend struct {
	id          string
	client      *http.Client
	apiKey      string
	apiEndpoint string
	teamKey     string
	teamID      string
	ctx         context.Context
}

// New creates a Linear-backed Backend scoped to teamKey (e.g. "ENG"). The
// API key is resolved via credentials.GetLinearAPIKey.
func New(id, teamKey string) (*Backend, error) {
	apiKey, err := credentials.GetLinearAPIKey()
	if err != nil {
		return nil, err
	}

	apiEndpoint := os.Getenv("LINEAR_API_URL")
	if apiEndpoint == "" {
		apiEndpoint = defaultLinearAPIEndpoint
	}

	b := &Backend{
		id:          id,
		client:      &http.Client{Timeout: 30 * time.Second},
		apiKey:      apiKey,
		apiEndpoint: apiEndpoint,
		teamKey:     teamKey,
		ctx:         context.Background(),
	}

	if teamKey != "" {
		teamID, err := b.getTeamID(teamKey)
		if err != nil {
			return nil, fmt.Errorf("lineartasks: resolve team %q: %w", teamKey, err)
		}
		b.teamID = teamID
	}

	return b, nil
}

// ID returns the configured backend identifier.
func (b *Backend) ID() string {
	return b.id
}

// ListTasks returns every issue in the configured team.
func (b *Backend) ListTasks() ([]backend.Task, error) {
	query := `
		query ListIssues($first: Int, $after: String, $filter: IssueFilter) {
			issues(first: $first, after: $after, filter: $filter) {
				nodes {
					id identifier title description priority dueDate url createdAt updatedAt
					state { id name type }
					assignee { id name displayName }
					labels { nodes { id name } }
					project { id name }
				}
				pageInfo { hasNextPage endCursor }
			}
		}
	`

	var filter map[string]any
	if b.teamID != "" {
		filter = map[string]any{"team": map[string]any{"id": map[string]any{"eq": b.teamID}}}
	}

	var tasks []backend.Task
	var after *string
	for {
		variables := map[string]any{"first": 100, "after": after}
		if filter != nil {
			variables["filter"] = filter
		}
		result, err := b.graphQL(query, variables)
		if err != nil {
			return nil, fmt.Errorf("lineartasks: list issues: %w", err)
		}

		issues, pageInfo, err := extractIssuesPage(result)
		if err != nil {
			return nil, err
		}
		for _, issue := range issues {
			task, err := b.issueToTask(issue)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, *task)
		}

		hasMore, _ := pageInfo["hasNextPage"].(bool)
		if !hasMore {
			break
		}
		cursor, _ := pageInfo["endCursor"].(string)
		if cursor == "" {
			break
		}
		after = &cursor
	}

	return tasks, nil
}

func extractIssuesPage(result map[string]any) ([]map[string]any, map[string]any, error) {
	data, ok := result["data"].(map[string]any)
	if !ok {
		return nil, nil, errors.New("lineartasks: unexpected response format")
	}
	issuesData, ok := data["issues"].(map[string]any)
	if !ok {
		return nil, nil, errors.New("lineartasks: unexpected response format: missing issues")
	}
	nodes, _ := issuesData["nodes"].([]any)
	pageInfo, _ := issuesData["pageInfo"].(map[string]any)

	issues := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		if issue, ok := n.(map[string]any); ok {
			issues = append(issues, issue)
		}
	}
	return issues, pageInfo, nil
}

// GetTask returns a single issue by its Linear identifier (e.g. "ENG-123").
func (b *Backend) GetTask(gid string) (*backend.Task, error) {
	issue, err := b.getIssueByIdentifier(gid)
	if err != nil {
		if isNotFound(err) {
			return nil, &backend.NotFoundError{Gid: gid}
		}
		return nil, err
	}
	return b.issueToTask(issue)
}

type notFoundError struct{ gid string }

func (e *notFoundError) Error() string { return fmt.Sprintf("issue %s not found", e.gid) }

func isNotFound(err error) bool {
	var nf *notFoundError
	return errors.As(err, &nf)
}

// CreateTask creates a new issue in the configured team.
func (b *Backend) CreateTask(input backend.TaskInput) (*backend.Task, error) {
	if b.teamID == "" {
		return nil, errors.New("lineartasks: team not configured")
	}

	mutation := `
		mutation CreateIssue($input: IssueCreateInput!) {
			issueCreate(input: $input) {
				success
				issue {
					id identifier title description priority dueDate url createdAt updatedAt
					state { id name type }
					assignee { id name displayName }
					labels { nodes { id name } }
					project { id name }
				}
			}
		}
	`

	issueInput := map[string]any{
		"title":  input.Name,
		"teamId": b.teamID,
	}
	if input.Notes != nil {
		issueInput["description"] = *input.Notes
	}
	if input.DueOn != nil {
		issueInput["dueDate"] = *input.DueOn
	}
	if input.Priority != nil {
		if lp, ok := canonicalPriorityToLinear[*input.Priority]; ok {
			issueInput["priority"] = lp
		}
	}

	var labels []string
	if input.IsMilestone {
		labels = append(labels, milestoneLabel)
	}
	if len(labels) > 0 {
		labelIDs, err := b.getOrCreateLabelIDs(labels)
		if err != nil {
			return nil, err
		}
		issueInput["labelIds"] = labelIDs
	}

	result, err := b.graphQL(mutation, map[string]any{"input": issueInput})
	if err != nil {
		return nil, fmt.Errorf("lineartasks: create issue: %w", err)
	}

	issue, err := extractMutatedIssue(result, "issueCreate")
	if err != nil {
		return nil, err
	}
	return b.issueToTask(issue)
}

// UpdateTask applies partial to the issue identified by gid.
func (b *Backend) UpdateTask(gid string, partial backend.TaskPartial) (*backend.Task, error) {
	issue, err := b.getIssueByIdentifier(gid)
	if err != nil {
		if isNotFound(err) {
			return nil, &backend.NotFoundError{Gid: gid}
		}
		return nil, err
	}

	linearID, _ := issue["id"].(string)
	if linearID == "" {
		return nil, fmt.Errorf("lineartasks: issue %s missing id", gid)
	}

	issueInput := map[string]any{}

	if partial.Name != nil {
		issueInput["title"] = *partial.Name
	}
	if partial.Notes != nil {
		if *partial.Notes == nil {
			issueInput["description"] = ""
		} else {
			issueInput["description"] = **partial.Notes
		}
	}
	if partial.DueOn != nil {
		if *partial.DueOn == nil {
			issueInput["dueDate"] = nil
		} else {
			issueInput["dueDate"] = **partial.DueOn
		}
	}
	if partial.Priority != nil {
		if *partial.Priority == nil {
			issueInput["priority"] = 0
		} else if lp, ok := canonicalPriorityToLinear[**partial.Priority]; ok {
			issueInput["priority"] = lp
		}
	}
	if partial.Completed != nil {
		stateID, err := b.findStateIDByType(completionStateType(*partial.Completed))
		if err != nil {
			return nil, err
		}
		if stateID != "" {
			issueInput["stateId"] = stateID
		}
	}
	if partial.Assignee != nil || partial.AssigneeGid != nil {
		switch {
		case partial.AssigneeGid != nil && *partial.AssigneeGid != nil:
			issueInput["assigneeId"] = **partial.AssigneeGid
		case partial.Assignee != nil && *partial.Assignee != nil:
			userID, err := b.getUserID(**partial.Assignee)
			if err != nil {
				return nil, fmt.Errorf("lineartasks: find assignee: %w", err)
			}
			issueInput["assigneeId"] = userID
		default:
			issueInput["assigneeId"] = nil
		}
	}
	if partial.Memberships != nil {
		if len(*partial.Memberships) == 0 {
			issueInput["projectId"] = nil
		} else {
			issueInput["projectId"] = (*partial.Memberships)[0].Gid
		}
	}

	needsLabelRebuild := partial.Tags != nil || partial.IsMilestone != nil ||
		partial.StartOn != nil || partial.Parent != nil
	if needsLabelRebuild {
		labelIDs, err := b.rebuildLabels(issue, partial)
		if err != nil {
			return nil, err
		}
		issueInput["labelIds"] = labelIDs
	}

	if len(issueInput) == 0 {
		return b.issueToTask(issue)
	}

	mutation := `
		mutation UpdateIssue($id: String!, $input: IssueUpdateInput!) {
			issueUpdate(id: $id, input: $input) {
				success
				issue {
					id identifier title description priority dueDate url createdAt updatedAt
					state { id name type }
					assignee { id name displayName }
					labels { nodes { id name } }
					project { id name }
				}
			}
		}
	`

	result, err := b.graphQL(mutation, map[string]any{"id": linearID, "input": issueInput})
	if err != nil {
		return nil, fmt.Errorf("lineartasks: update issue: %w", err)
	}

	updated, err := extractMutatedIssue(result, "issueUpdate")
	if err != nil {
		return nil, err
	}
	return b.issueToTask(updated)
}

// completionStateType maps a completed flag to the Linear workflow state
// type used to search for a matching state.
func completionStateType(completed bool) string {
	if completed {
		return "completed"
	}
	return "unstarted"
}

// rebuildLabels recomputes the label id set for an update, preserving any
// synthetic label whose field wasn't touched by partial and swapping in new
// ones for fields that were.
func (b *Backend) rebuildLabels(issue map[string]any, partial backend.TaskPartial) ([]string, error) {
	existingByName := map[string]string{} // name -> id
	if labelsData, ok := issue["labels"].(map[string]any); ok {
		if nodes, ok := labelsData["nodes"].([]any); ok {
			for _, n := range nodes {
				if label, ok := n.(map[string]any); ok {
					existingByName[getString(label, "name")] = getString(label, "id")
				}
			}
		}
	}

	var names []string

	if partial.Tags != nil {
		names = append(names, *partial.Tags...)
	} else {
		for name := range existingByName {
			if !isSyntheticLabel(name) {
				names = append(names, name)
			}
		}
	}

	if partial.IsMilestone != nil {
		if *partial.IsMilestone {
			names = append(names, milestoneLabel)
		}
	} else if _, ok := existingByName[milestoneLabel]; ok {
		names = append(names, milestoneLabel)
	}

	if partial.StartOn != nil {
		if *partial.StartOn != nil {
			names = append(names, startLabelPrefix+**partial.StartOn)
		}
	} else if v := existingLabelValue(existingByName, startLabelPrefix); v != "" {
		names = append(names, startLabelPrefix+v)
	}

	if partial.Parent != nil {
		if *partial.Parent != nil {
			names = append(names, parentLabelPrefix+**partial.Parent)
		}
	} else if v := existingLabelValue(existingByName, parentLabelPrefix); v != "" {
		names = append(names, parentLabelPrefix+v)
	}

	for name := range existingByName {
		if strings.HasPrefix(name, dependsLabelPrefix) || strings.HasPrefix(name, blocksLabelPrefix) {
			names = append(names, name)
		}
	}

	return b.getOrCreateLabelIDs(names)
}

func existingLabelValue(byName map[string]string, prefix string) string {
	for name := range byName {
		if strings.HasPrefix(name, prefix) {
			return strings.TrimPrefix(name, prefix)
		}
	}
	return ""
}

func extractMutatedIssue(result map[string]any, mutationField string) (map[string]any, error) {
	data, ok := result["data"].(map[string]any)
	if !ok {
		return nil, errors.New("lineartasks: unexpected response format")
	}
	mutationResult, ok := data[mutationField].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("lineartasks: unexpected response format: missing %s", mutationField)
	}
	success, _ := mutationResult["success"].(bool)
	if !success {
		return nil, fmt.Errorf("lineartasks: %s did not succeed", mutationField)
	}
	issue, ok := mutationResult["issue"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("lineartasks: unexpected response format: missing issue in %s", mutationField)
	}
	return issue, nil
}

// DeleteTask archives the issue. Linear has no hard-delete for issues.
func (b *Backend) DeleteTask(gid string) error {
	issue, err := b.getIssueByIdentifier(gid)
	if err != nil {
		if isNotFound(err) {
			return &backend.NotFoundError{Gid: gid}
		}
		return err
	}
	linearID, _ := issue["id"].(string)

	mutation := `
		mutation ArchiveIssue($id: String!) {
			issueArchive(id: $id) { success }
		}
	`
	result, err := b.graphQL(mutation, map[string]any{"id": linearID})
	if err != nil {
		return fmt.Errorf("lineartasks: archive issue: %w", err)
	}
	data, ok := result["data"].(map[string]any)
	if !ok {
		return errors.New("lineartasks: unexpected response format")
	}
	archiveResult, ok := data["issueArchive"].(map[string]any)
	if !ok {
		return errors.New("lineartasks: unexpected response format: missing issueArchive")
	}
	success, _ := archiveResult["success"].(bool)
	if !success {
		return errors.New("lineartasks: failed to archive issue")
	}
	return nil
}

// ListTags returns the team's issue labels, excluding synthetic ones.
func (b *Backend) ListTags() ([]backend.Tag, error) {
	query := `
		query GetLabels($teamId: ID) {
			issueLabels(filter: { team: { id: { eq: $teamId } } }) {
				nodes { id name }
			}
		}
	`
	variables := map[string]any{}
	if b.teamID != "" {
		variables["teamId"] = b.teamID
	}
	result, err := b.graphQL(query, variables)
	if err != nil {
		return nil, fmt.Errorf("lineartasks: list labels: %w", err)
	}

	data, ok := result["data"].(map[string]any)
	if !ok {
		return nil, errors.New("lineartasks: unexpected response format")
	}
	labelsData, ok := data["issueLabels"].(map[string]any)
	if !ok {
		return nil, errors.New("lineartasks: unexpected response format: missing issueLabels")
	}
	nodes, _ := labelsData["nodes"].([]any)

	tags := make([]backend.Tag, 0, len(nodes))
	for _, n := range nodes {
		label, ok := n.(map[string]any)
		if !ok {
			continue
		}
		name := getString(label, "name")
		if isSyntheticLabel(name) {
			continue
		}
		tags = append(tags, backend.Tag{Gid: getString(label, "id"), Name: name})
	}
	return tags, nil
}

// CreateTag creates a new issue label.
func (b *Backend) CreateTag(name string) (*backend.Tag, error) {
	mutation := `
		mutation CreateLabel($input: IssueLabelCreateInput!) {
			issueLabelCreate(input: $input) {
				success
				issueLabel { id name }
			}
		}
	`
	input := map[string]any{"name": name}
	if b.teamID != "" {
		input["teamId"] = b.teamID
	}
	result, err := b.graphQL(mutation, map[string]any{"input": input})
	if err != nil {
		return nil, fmt.Errorf("lineartasks: create label: %w", err)
	}
	data, ok := result["data"].(map[string]any)
	if !ok {
		return nil, errors.New("lineartasks: unexpected response format")
	}
	createResult, ok := data["issueLabelCreate"].(map[string]any)
	if !ok {
		return nil, errors.New("lineartasks: unexpected response format: missing issueLabelCreate")
	}
	label, ok := createResult["issueLabel"].(map[string]any)
	if !ok {
		return nil, errors.New("lineartasks: unexpected response format: missing issueLabel")
	}
	return &backend.Tag{Gid: getString(label, "id"), Name: getString(label, "name")}, nil
}

// ListSections returns the team's Linear Projects, used as Sections.
func (b *Backend) ListSections() ([]backend.Section, error) {
	if b.teamID == "" {
		return nil, nil
	}
	query := `
		query GetProjects($teamId: String!) {
			team(id: $teamId) {
				projects(first: 100) {
					nodes { id name }
				}
			}
		}
	`
	result, err := b.graphQL(query, map[string]any{"teamId": b.teamID})
	if err != nil {
		return nil, fmt.Errorf("lineartasks: list projects: %w", err)
	}
	data, ok := result["data"].(map[string]any)
	if !ok {
		return nil, errors.New("lineartasks: unexpected response format")
	}
	team, ok := data["team"].(map[string]any)
	if !ok {
		return nil, errors.New("lineartasks: unexpected response format: missing team")
	}
	projectsData, ok := team["projects"].(map[string]any)
	if !ok {
		return nil, errors.New("lineartasks: unexpected response format: missing projects")
	}
	nodes, _ := projectsData["nodes"].([]any)

	sections := make([]backend.Section, 0, len(nodes))
	for _, n := range nodes {
		project, ok := n.(map[string]any)
		if !ok {
			continue
		}
		sections = append(sections, backend.Section{Gid: getString(project, "id"), Name: getString(project, "name")})
	}
	return sections, nil
}

// CreateSection creates a new Linear Project scoped to the configured team.
func (b *Backend) CreateSection(name string) (*backend.Section, error) {
	if b.teamID == "" {
		return nil, errors.New("lineartasks: team not configured")
	}
	mutation := `
		mutation CreateProject($input: ProjectCreateInput!) {
			projectCreate(input: $input) {
				success
				project { id name }
			}
		}
	`
	input := map[string]any{"name": name, "teamIds": []string{b.teamID}}
	result, err := b.graphQL(mutation, map[string]any{"input": input})
	if err != nil {
		return nil, fmt.Errorf("lineartasks: create project: %w", err)
	}
	data, ok := result["data"].(map[string]any)
	if !ok {
		return nil, errors.New("lineartasks: unexpected response format")
	}
	createResult, ok := data["projectCreate"].(map[string]any)
	if !ok {
		return nil, errors.New("lineartasks: unexpected response format: missing projectCreate")
	}
	success, _ := createResult["success"].(bool)
	if !success {
		return nil, errors.New("lineartasks: failed to create project")
	}
	project, ok := createResult["project"].(map[string]any)
	if !ok {
		return nil, errors.New("lineartasks: unexpected response format: missing project")
	}
	return &backend.Section{Gid: getString(project, "id"), Name: getString(project, "name")}, nil
}

// issueToTask converts a raw Linear issue (as decoded GraphQL JSON) into a
// canonical Task, stripping synthetic labels into their dedicated fields.
func (b *Backend) issueToTask(issue map[string]any) (*backend.Task, error) {
	task := &backend.Task{
		Gid:  getString(issue, "identifier"),
		Name: getString(issue, "title"),
	}

	if desc := getString(issue, "description"); desc != "" {
		task.Notes = &desc
	}

	if priority, ok := issue["priority"].(float64); ok {
		if p, ok := linearPriorityToCanonical[int(priority)]; ok {
			task.Priority = &p
		}
	}

	if state, ok := issue["state"].(map[string]any); ok {
		t := getString(state, "type")
		task.Completed = t == "completed" || t == "canceled"
	}

	if assignee, ok := issue["assignee"].(map[string]any); ok {
		name := getString(assignee, "displayName")
		if name == "" {
			name = getString(assignee, "name")
		}
		if name != "" {
			task.Assignee = &name
		}
		if id := getString(assignee, "id"); id != "" {
			task.AssigneeGid = &id
		}
	}

	if dueDate := getString(issue, "dueDate"); dueDate != "" {
		task.DueOn = &dueDate
	}

	if project, ok := issue["project"].(map[string]any); ok {
		task.Memberships = []backend.Section{{Gid: getString(project, "id"), Name: getString(project, "name")}}
	}

	if labelsData, ok := issue["labels"].(map[string]any); ok {
		if nodes, ok := labelsData["nodes"].([]any); ok {
			for _, n := range nodes {
				label, ok := n.(map[string]any)
				if !ok {
					continue
				}
				name := getString(label, "name")
				switch {
				case name == milestoneLabel:
					task.IsMilestone = true
				case strings.HasPrefix(name, startLabelPrefix):
					v := strings.TrimPrefix(name, startLabelPrefix)
					task.StartOn = &v
				case strings.HasPrefix(name, parentLabelPrefix):
					v := strings.TrimPrefix(name, parentLabelPrefix)
					task.Parent = &v
				case strings.HasPrefix(name, dependsLabelPrefix):
					task.Dependencies = append(task.Dependencies, strings.TrimPrefix(name, dependsLabelPrefix))
				case strings.HasPrefix(name, blocksLabelPrefix):
					task.Dependents = append(task.Dependents, strings.TrimPrefix(name, blocksLabelPrefix))
				default:
					task.Tags = append(task.Tags, name)
				}
			}
		}
	}

	return task, nil
}

// Helper functions

// graphQL executes a GraphQL query/mutation against the Linear API.
func (b *Backend) graphQL(query string, variables map[string]any) (map[string]any, error) {
	body := map[string]any{"query": query}
	if variables != nil {
		body["variables"] = variables
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(b.ctx, http.MethodPost, b.apiEndpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s - %s", resp.Status, string(respBody))
	}

	var result map[string]any
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if gqlErrors, ok := result["errors"].([]any); ok && len(gqlErrors) > 0 {
		if errObj, ok := gqlErrors[0].(map[string]any); ok {
			if msg, ok := errObj["message"].(string); ok {
				return nil, fmt.Errorf("GraphQL error: %s", msg)
			}
		}
		return nil, fmt.Errorf("GraphQL error: %v", gqlErrors)
	}

	return result, nil
}

func (b *Backend) getTeamID(key string) (string, error) {
	query := `
		query GetTeam($key: String!) {
			team(id: $key) { id name key }
		}
	`
	result, err := b.graphQL(query, map[string]any{"key": key})
	if err != nil {
		return "", err
	}
	data, ok := result["data"].(map[string]any)
	if !ok {
		return "", errors.New("unexpected response format")
	}
	team, ok := data["team"].(map[string]any)
	if !ok || team == nil {
		return "", fmt.Errorf("team %s not found", key)
	}
	id := getString(team, "id")
	if id == "" {
		return "", errors.New("failed to get team id")
	}
	return id, nil
}

func (b *Backend) getIssueByIdentifier(identifier string) (map[string]any, error) {
	query := `
		query GetIssue($id: String!) {
			issue(id: $id) {
				id identifier title description priority dueDate url createdAt updatedAt
				state { id name type }
				assignee { id name displayName }
				labels { nodes { id name } }
				project { id name }
			}
		}
	`
	result, err := b.graphQL(query, map[string]any{"id": identifier})
	if err != nil {
		return nil, err
	}
	data, ok := result["data"].(map[string]any)
	if !ok {
		return nil, errors.New("unexpected response format")
	}
	issue, ok := data["issue"].(map[string]any)
	if !ok || issue == nil {
		return nil, &notFoundError{gid: identifier}
	}
	return issue, nil
}

func (b *Backend) findStateIDByType(stateType string) (string, error) {
	query := `
		query GetWorkflowStates($teamId: ID) {
			workflowStates(filter: { team: { id: { eq: $teamId } } }) {
				nodes { id name type }
			}
		}
	`
	variables := map[string]any{}
	if b.teamID != "" {
		variables["teamId"] = b.teamID
	}
	result, err := b.graphQL(query, variables)
	if err != nil {
		return "", err
	}
	data, ok := result["data"].(map[string]any)
	if !ok {
		return "", errors.New("unexpected response format")
	}
	states, ok := data["workflowStates"].(map[string]any)
	if !ok {
		return "", errors.New("unexpected response format: missing workflowStates")
	}
	nodes, _ := states["nodes"].([]any)
	for _, n := range nodes {
		state, ok := n.(map[string]any)
		if !ok {
			continue
		}
		if getString(state, "type") == stateType {
			return getString(state, "id"), nil
		}
	}
	return "", nil
}

func (b *Backend) getUserID(name string) (string, error) {
	query := `
		query GetUsers {
			users { nodes { id name displayName email } }
		}
	`
	result, err := b.graphQL(query, nil)
	if err != nil {
		return "", err
	}
	data, ok := result["data"].(map[string]any)
	if !ok {
		return "", errors.New("unexpected response format")
	}
	users, ok := data["users"].(map[string]any)
	if !ok {
		return "", errors.New("unexpected response format: missing users")
	}
	nodes, _ := users["nodes"].([]any)

	nameLower := strings.ToLower(name)
	for _, n := range nodes {
		user, ok := n.(map[string]any)
		if !ok {
			continue
		}
		if strings.EqualFold(getString(user, "name"), name) ||
			strings.EqualFold(getString(user, "displayName"), name) ||
			strings.EqualFold(getString(user, "email"), name) ||
			strings.Contains(strings.ToLower(getString(user, "displayName")), nameLower) {
			return getString(user, "id"), nil
		}
	}
	return "", fmt.Errorf("user %s not found", name)
}

func (b *Backend) getOrCreateLabelIDs(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}

	existing, err := b.getLabelIDsByName()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		if id, ok := existing[strings.ToLower(name)]; ok {
			ids = append(ids, id)
			continue
		}
		id, err := b.createLabel(name)
		if err != nil {
			return nil, fmt.Errorf("get/create label %q: %w", name, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (b *Backend) getLabelIDsByName() (map[string]string, error) {
	query := `
		query GetLabels($teamId: ID) {
			issueLabels(filter: { team: { id: { eq: $teamId } } }) {
				nodes { id name }
			}
		}
	`
	variables := map[string]any{}
	if b.teamID != "" {
		variables["teamId"] = b.teamID
	}
	result, err := b.graphQL(query, variables)
	if err != nil {
		return nil, err
	}
	data, ok := result["data"].(map[string]any)
	if !ok {
		return nil, errors.New("unexpected response format")
	}
	labels, ok := data["issueLabels"].(map[string]any)
	if !ok {
		return nil, errors.New("unexpected response format: missing issueLabels")
	}
	nodes, _ := labels["nodes"].([]any)

	byName := make(map[string]string, len(nodes))
	for _, n := range nodes {
		label, ok := n.(map[string]any)
		if !ok {
			continue
		}
		byName[strings.ToLower(getString(label, "name"))] = getString(label, "id")
	}
	return byName, nil
}

func (b *Backend) createLabel(name string) (string, error) {
	mutation := `
		mutation CreateLabel($input: IssueLabelCreateInput!) {
			issueLabelCreate(input: $input) {
				success
				issueLabel { id name }
			}
		}
	`
	input := map[string]any{"name": name}
	if b.teamID != "" {
		input["teamId"] = b.teamID
	}
	result, err := b.graphQL(mutation, map[string]any{"input": input})
	if err != nil {
		return "", err
	}
	data, ok := result["data"].(map[string]any)
	if !ok {
		return "", errors.New("unexpected response format")
	}
	createResult, ok := data["issueLabelCreate"].(map[string]any)
	if !ok {
		return "", errors.New("unexpected response format: missing issueLabelCreate")
	}
	label, ok := createResult["issueLabel"].(map[string]any)
	if !ok {
		return "", errors.New("unexpected response format: missing issueLabel")
	}
	return getString(label, "id"), nil
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
