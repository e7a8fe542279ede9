// This file adapts GitHub Projects v2 GraphQL support from a single-select
// status field (the teacher's usage) to a date field, used to sync Task's
// DueOn when a project is configured (SPEC_FULL.md's optional dueOn/project
// field sync for the GitHub backend).
package githubtasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// ProjectsClient handles GitHub Projects v2 operations via GraphQL.
type ProjectsClient struct {
	client     *githubv4.Client
	ctx        context.Context
	owner      string
	repo       string
	projectNum int
	fieldName  string
}

// ProjectField is a date-typed field in a GitHub Project.
type ProjectField struct {
	ID   string
	Name string
}

// NewProjectsClient creates a GraphQL client for GitHub Projects v2.
func NewProjectsClient(ctx context.Context, token, owner, repo string, projectNum int, fieldName string) (*ProjectsClient, error) {
	if token == "" {
		return nil, errors.New("githubtasks: token is required for projects v2")
	}
	if projectNum <= 0 {
		return nil, errors.New("githubtasks: project number must be positive")
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, src)

	return &ProjectsClient{
		client:     githubv4.NewClient(httpClient),
		ctx:        ctx,
		owner:      owner,
		repo:       repo,
		projectNum: projectNum,
		fieldName:  fieldName,
	}, nil
}

func (p *ProjectsClient) getProjectID() (string, error) {
	var query struct {
		Repository struct {
			ProjectV2 struct {
				ID githubv4.ID
			} `graphql:"projectV2(number: $projectNumber)"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}

	variables := map[string]any{
		"owner":         githubv4.String(p.owner),
		"repo":          githubv4.String(p.repo),
		"projectNumber": githubv4.Int(p.projectNum),
	}
	if err := p.client.Query(p.ctx, &query, variables); err != nil {
		return "", fmt.Errorf("get project id: %w", err)
	}
	return query.Repository.ProjectV2.ID.(string), nil
}

// GetDateField looks up the configured date field by name.
func (p *ProjectsClient) GetDateField() (*ProjectField, error) {
	projectID, err := p.getProjectID()
	if err != nil {
		return nil, err
	}

	var query struct {
		Node struct {
			ProjectV2 struct {
				Fields struct {
					Nodes []struct {
						ProjectV2Field struct {
							ID   githubv4.ID
							Name githubv4.String
						} `graphql:"... on ProjectV2Field"`
					}
				} `graphql:"fields(first: 50)"`
			} `graphql:"... on ProjectV2"`
		} `graphql:"node(id: $projectId)"`
	}
	variables := map[string]any{"projectId": githubv4.ID(projectID)}
	if err := p.client.Query(p.ctx, &query, variables); err != nil {
		return nil, fmt.Errorf("get project fields: %w", err)
	}

	for _, field := range query.Node.ProjectV2.Fields.Nodes {
		if string(field.ProjectV2Field.Name) == p.fieldName {
			return &ProjectField{ID: field.ProjectV2Field.ID.(string), Name: p.fieldName}, nil
		}
	}
	return nil, fmt.Errorf("date field %q not found in project", p.fieldName)
}

// GetOrAddItem returns the project item id for issueNum, adding the issue
// to the project first if it is not already a member.
func (p *ProjectsClient) GetOrAddItem(issueNum int) (string, error) {
	itemID, err := p.findItem(issueNum)
	if err == nil {
		return itemID, nil
	}

	issueNodeID, err := p.getIssueNodeID(issueNum)
	if err != nil {
		return "", err
	}
	return p.addIssueToProject(issueNodeID)
}

func (p *ProjectsClient) getIssueNodeID(issueNum int) (string, error) {
	var query struct {
		Repository struct {
			Issue struct {
				ID githubv4.ID
			} `graphql:"issue(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}
	variables := map[string]any{
		"owner":  githubv4.String(p.owner),
		"repo":   githubv4.String(p.repo),
		"number": githubv4.Int(issueNum),
	}
	if err := p.client.Query(p.ctx, &query, variables); err != nil {
		return "", fmt.Errorf("get issue node id: %w", err)
	}
	return query.Repository.Issue.ID.(string), nil
}

func (p *ProjectsClient) addIssueToProject(issueNodeID string) (string, error) {
	projectID, err := p.getProjectID()
	if err != nil {
		return "", err
	}

	var mutation struct {
		AddProjectV2ItemById struct {
			Item struct {
				ID githubv4.ID
			}
		} `graphql:"addProjectV2ItemById(input: $input)"`
	}
	input := githubv4.AddProjectV2ItemByIdInput{
		ProjectID: githubv4.ID(projectID),
		ContentID: githubv4.ID(issueNodeID),
	}
	if err := p.client.Mutate(p.ctx, &mutation, input, nil); err != nil {
		return "", fmt.Errorf("add issue to project: %w", err)
	}
	return mutation.AddProjectV2ItemById.Item.ID.(string), nil
}

func (p *ProjectsClient) findItem(issueNum int) (string, error) {
	projectID, err := p.getProjectID()
	if err != nil {
		return "", err
	}

	var query struct {
		Node struct {
			ProjectV2 struct {
				Items struct {
					Nodes []struct {
						ID      githubv4.ID
						Content struct {
							Issue struct {
								Number githubv4.Int
							} `graphql:"... on Issue"`
						}
					}
					PageInfo struct {
						HasNextPage githubv4.Boolean
						EndCursor   githubv4.String
					}
				} `graphql:"items(first: 100, after: $cursor)"`
			} `graphql:"... on ProjectV2"`
		} `graphql:"node(id: $projectId)"`
	}

	var cursor *githubv4.String
	for {
		variables := map[string]any{"projectId": githubv4.ID(projectID), "cursor": cursor}
		if err := p.client.Query(p.ctx, &query, variables); err != nil {
			return "", fmt.Errorf("list project items: %w", err)
		}
		for _, item := range query.Node.ProjectV2.Items.Nodes {
			if int(item.Content.Issue.Number) == issueNum {
				return item.ID.(string), nil
			}
		}
		if !bool(query.Node.ProjectV2.Items.PageInfo.HasNextPage) {
			break
		}
		cursor = &query.Node.ProjectV2.Items.PageInfo.EndCursor
	}
	return "", fmt.Errorf("issue #%d not found in project", issueNum)
}

// UpdateDateField sets fieldID on the project item to the calendar date
// dateValue (YYYY-MM-DD).
func (p *ProjectsClient) UpdateDateField(itemID, fieldID, dateValue string) error {
	parsed, err := time.Parse("2006-01-02", dateValue)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", dateValue, err)
	}
	date := githubv4.Date{Time: parsed}

	projectID, err := p.getProjectID()
	if err != nil {
		return err
	}

	var mutation struct {
		UpdateProjectV2ItemFieldValue struct {
			ProjectV2Item struct {
				ID githubv4.ID
			}
		} `graphql:"updateProjectV2ItemFieldValue(input: $input)"`
	}

	input := githubv4.UpdateProjectV2ItemFieldValueInput{
		ProjectID: githubv4.ID(projectID),
		ItemID:    githubv4.ID(itemID),
		FieldID:   githubv4.ID(fieldID),
		Value:     githubv4.ProjectV2FieldValue{Date: &date},
	}
	if err := p.client.Mutate(p.ctx, &mutation, input, nil); err != nil {
		return fmt.Errorf("update date field: %w", err)
	}
	return nil
}

// GetDateValue returns the fieldID date value for issueNum's project item,
// or "" if unset.
func (p *ProjectsClient) GetDateValue(issueNum int, fieldID string) (string, error) {
	projectID, err := p.getProjectID()
	if err != nil {
		return "", err
	}

	var query struct {
		Node struct {
			ProjectV2 struct {
				Items struct {
					Nodes []struct {
						Content struct {
							Issue struct {
								Number githubv4.Int
							} `graphql:"... on Issue"`
						}
						FieldValues struct {
							Nodes []struct {
								ProjectV2ItemFieldDateValue struct {
									Field struct {
										ProjectV2Field struct {
											ID githubv4.ID
										} `graphql:"... on ProjectV2Field"`
									}
									Date githubv4.Date
								} `graphql:"... on ProjectV2ItemFieldDateValue"`
							}
						} `graphql:"fieldValues(first: 20)"`
					}
					PageInfo struct {
						HasNextPage githubv4.Boolean
						EndCursor   githubv4.String
					}
				} `graphql:"items(first: 100, after: $cursor)"`
			} `graphql:"... on ProjectV2"`
		} `graphql:"node(id: $projectId)"`
	}

	var cursor *githubv4.String
	for {
		variables := map[string]any{"projectId": githubv4.ID(projectID), "cursor": cursor}
		if err := p.client.Query(p.ctx, &query, variables); err != nil {
			return "", fmt.Errorf("get project items: %w", err)
		}
		for _, item := range query.Node.ProjectV2.Items.Nodes {
			if int(item.Content.Issue.Number) != issueNum {
				continue
			}
			for _, fv := range item.FieldValues.Nodes {
				fieldRef := fv.ProjectV2ItemFieldDateValue.Field.ProjectV2Field.ID
				if fieldRef != nil && fieldRef.(string) == fieldID {
					return fv.ProjectV2ItemFieldDateValue.Date.Format("2006-01-02"), nil
				}
			}
			return "", nil
		}
		if !bool(query.Node.ProjectV2.Items.PageInfo.HasNextPage) {
			break
		}
		cursor = &query.Node.ProjectV2.Items.PageInfo.EndCursor
	}
	return "", nil
}
