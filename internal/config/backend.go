package config

import (
	"fmt"

	"github.com/alexbrand/tasksync/internal/backend"
	"github.com/alexbrand/tasksync/internal/credentials"
	"github.com/alexbrand/tasksync/internal/githubtasks"
	"github.com/alexbrand/tasksync/internal/lineartasks"
	"github.com/alexbrand/tasksync/internal/localtasks"
)

// BuildBackend constructs the backend.Backend a Workspace entry describes,
// identified as id (conventionally the workspace name). The zero-arg
// backend.Registry factory pattern doesn't fit here: every adapter needs
// runtime configuration (a path, a repo slug, a team key) that a SyncPair
// supplies through its Workspaces.
func BuildBackend(id string, ws Workspace) (backend.Backend, error) {
	switch ws.Backend {
	case "local":
		if ws.Path == "" {
			return nil, fmt.Errorf("config: workspace %q: local backend requires path", id)
		}
		var opts []localtasks.Option
		if ws.GitSync {
			opts = append(opts, localtasks.WithGitSync(true))
		}
		return localtasks.New(id, ws.Path, opts...)

	case "github":
		if ws.Repo == "" {
			return nil, fmt.Errorf("config: workspace %q: github backend requires repo", id)
		}
		var opts []githubtasks.Option
		if ws.ProjectNumber > 0 {
			token, err := credentials.GetGitHubToken()
			if err != nil {
				return nil, err
			}
			opts = append(opts, githubtasks.WithProjectsV2(token, ws.ProjectNumber, ws.ProjectDateField))
		}
		return githubtasks.New(id, ws.Repo, opts...)

	case "linear":
		return lineartasks.New(id, ws.Team)

	default:
		return nil, fmt.Errorf("config: workspace %q: unknown backend %q", id, ws.Backend)
	}
}
