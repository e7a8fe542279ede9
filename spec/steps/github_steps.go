// Package steps provides step definitions for the tasksync CLI Gherkin specs.
package steps

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"

	"github.com/alexbrand/tasksync/spec/support"
)

type githubMockKey struct{}
type githubWorkspaceKey struct{}

type githubWorkspace struct {
	name string
	repo string
}

func getGitHubMock(ctx context.Context) *support.MockGitHubServer {
	mock, _ := ctx.Value(githubMockKey{}).(*support.MockGitHubServer)
	return mock
}

func getGitHubWorkspace(ctx context.Context) *githubWorkspace {
	ws, _ := ctx.Value(githubWorkspaceKey{}).(*githubWorkspace)
	return ws
}

// InitializeGitHubSteps registers step definitions for scenarios that
// exercise internal/githubtasks against a mock GitHub API rather than a
// second local workspace.
func InitializeGitHubSteps(ctx *godog.ScenarioContext) {
	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if mock := getGitHubMock(ctx); mock != nil {
			mock.Close()
		}
		return ctx, nil
	})

	ctx.Step(`^a GitHub workspace "([^"]*)" for repo "([^"]*)" backed by a mock server$`, aGitHubWorkspaceForRepoBackedByAMockServer)
	ctx.Step(`^a GitHub-backed sync pair "([^"]*)" from "([^"]*)" to "([^"]*)" with direction "([^"]*)"$`, aGitHubBackedSyncPairFromToWithDirection)
	ctx.Step(`^issue (\d+) titled "([^"]*)" exists in the mock GitHub repository$`, issueExistsInTheMockGitHubRepository)
	ctx.Step(`^issue (\d+) titled "([^"]*)" is closed in the mock GitHub repository$`, issueIsClosedInTheMockGitHubRepository)
	ctx.Step(`^the mock GitHub repository should have an issue titled "([^"]*)"$`, theMockGitHubRepositoryShouldHaveAnIssueTitled)
	ctx.Step(`^the task "([^"]*)" in workspace "([^"]*)" should be completed$`, theTaskInWorkspaceShouldBeCompleted)
}

func aGitHubWorkspaceForRepoBackedByAMockServer(ctx context.Context, name, repo string) (context.Context, error) {
	mock := support.NewMockGitHubServer()
	mock.ExpectedToken = "test-gh-token"

	runner := getCLIRunner(ctx)
	runner.SetEnv("GITHUB_TOKEN", "test-gh-token")
	runner.SetEnv("GITHUB_API_URL", mock.URL)

	ctx = context.WithValue(ctx, githubMockKey{}, mock)
	ctx = context.WithValue(ctx, githubWorkspaceKey{}, &githubWorkspace{name: name, repo: repo})
	return ctx, nil
}

func aGitHubBackedSyncPairFromToWithDirection(ctx context.Context, pairName, from, to, direction string) error {
	env := getTestEnv(ctx)
	gh := getGitHubWorkspace(ctx)
	if gh == nil {
		return fmt.Errorf("no GitHub workspace registered for sync pair %q", pairName)
	}

	localName := from
	if localName == gh.name {
		localName = to
	}

	cfg := &support.Config{
		Version: 1,
		Defaults: &support.DefaultsConfig{
			Format:   "table",
			SyncPair: pairName,
		},
		Workspaces: map[string]*support.WorkspaceConfig{
			gh.name:   {Backend: "github", Repo: gh.repo},
			localName: {Backend: "local", Path: "./" + localName},
		},
		SyncPairs: map[string]*support.SyncPairConfig{
			pairName: {
				Workspaces:       []string{from, to},
				Direction:        direction,
				ConflictStrategy: "last-write-wins",
				SyncTags:         true,
				SyncSections:     true,
			},
		},
	}

	gen := support.NewConfigGenerator()
	return gen.Generate(env, cfg)
}

func issueExistsInTheMockGitHubRepository(ctx context.Context, number int, title string) error {
	mock := getGitHubMock(ctx)
	if mock == nil {
		return fmt.Errorf("no mock GitHub server registered")
	}
	mock.SetIssues([]support.MockGitHubIssue{{Number: number, Title: title, State: "open"}})
	return nil
}

func issueIsClosedInTheMockGitHubRepository(ctx context.Context, number int, title string) error {
	mock := getGitHubMock(ctx)
	if mock == nil {
		return fmt.Errorf("no mock GitHub server registered")
	}
	mock.SetIssues([]support.MockGitHubIssue{{Number: number, Title: title, State: "closed"}})
	return nil
}

func theMockGitHubRepositoryShouldHaveAnIssueTitled(ctx context.Context, title string) error {
	mock := getGitHubMock(ctx)
	if mock == nil {
		return fmt.Errorf("no mock GitHub server registered")
	}
	for i := 1; i < mock.NextIssueNumber; i++ {
		if issue := mock.GetIssue(i); issue != nil && issue.Title == title {
			return nil
		}
	}
	return fmt.Errorf("mock GitHub repository has no issue titled %q (checked issues 1-%d)", title, mock.NextIssueNumber-1)
}

func theTaskInWorkspaceShouldBeCompleted(ctx context.Context, title, workspace string) error {
	env := getTestEnv(ctx)
	tf, err := support.FindTaskFileByName(env.Path(workspace), title)
	if err != nil {
		return err
	}
	if tf == nil {
		return fmt.Errorf("workspace %q has no task titled %q", workspace, title)
	}
	if !tf.Completed {
		return fmt.Errorf("task %q in workspace %q is not completed", title, workspace)
	}
	return nil
}
