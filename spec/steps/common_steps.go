// Package steps provides step definitions for the tasksync CLI Gherkin specs.
package steps

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/alexbrand/tasksync/spec/support"
)

type contextKey string

const (
	testEnvKey    contextKey = "testEnv"
	cliRunnerKey  contextKey = "cliRunner"
	lastResultKey contextKey = "lastResult"
	gidCounterKey contextKey = "gidCounter"
)

func getTestEnv(ctx context.Context) *support.TestEnv {
	env, _ := ctx.Value(testEnvKey).(*support.TestEnv)
	return env
}

func getCLIRunner(ctx context.Context) *support.CLIRunner {
	runner, _ := ctx.Value(cliRunnerKey).(*support.CLIRunner)
	return runner
}

func getLastResult(ctx context.Context) *support.CommandResult {
	result, _ := ctx.Value(lastResultKey).(*support.CommandResult)
	return result
}

// InitializeCommonSteps registers every step definition used by the
// tasksync feature files.
func InitializeCommonSteps(ctx *godog.ScenarioContext) {
	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		env, err := support.NewTestEnv()
		if err != nil {
			return ctx, fmt.Errorf("failed to create test environment: %w", err)
		}

		runner := support.NewCLIRunner("")
		runner.WorkDir = env.TempDir

		ctx = context.WithValue(ctx, testEnvKey, env)
		ctx = context.WithValue(ctx, cliRunnerKey, runner)
		ctx = context.WithValue(ctx, gidCounterKey, new(int))
		return ctx, nil
	})

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if env := getTestEnv(ctx); env != nil {
			_ = env.Cleanup()
		}
		return ctx, nil
	})

	// --- Given: workspace and config setup ---
	ctx.Step(`^a local workspace "([^"]*)" at "([^"]*)"$`, aLocalWorkspaceAt)
	ctx.Step(`^a sync pair "([^"]*)" from "([^"]*)" to "([^"]*)" with direction "([^"]*)"$`, aSyncPairFromToWithDirection)

	// --- Given: task fixtures ---
	ctx.Step(`^task "([^"]*)" exists in workspace "([^"]*)"$`, taskExistsInWorkspace)
	ctx.Step(`^task "([^"]*)" exists in workspace "([^"]*)" with priority "([^"]*)"$`, taskExistsInWorkspaceWithPriority)
	ctx.Step(`^task "([^"]*)" in workspace "([^"]*)" is updated to priority "([^"]*)"$`, taskInWorkspaceIsUpdatedToPriority)

	// --- When: running the CLI ---
	ctx.Step(`^I run "([^"]*)"$`, iRun)

	// --- Then: process-level assertions ---
	ctx.Step(`^the exit code should be (\d+)$`, theExitCodeShouldBe)
	ctx.Step(`^stdout should contain "([^"]*)"$`, stdoutShouldContain)
	ctx.Step(`^stderr should contain "([^"]*)"$`, stderrShouldContain)
	ctx.Step(`^stdout should not contain "([^"]*)"$`, stdoutShouldNotContain)

	// --- Then: workspace/task assertions ---
	ctx.Step(`^workspace "([^"]*)" should contain a task titled "([^"]*)"$`, workspaceShouldContainTaskTitled)
	ctx.Step(`^workspace "([^"]*)" should not contain a task titled "([^"]*)"$`, workspaceShouldNotContainTaskTitled)
	ctx.Step(`^the task "([^"]*)" in workspace "([^"]*)" should have priority "([^"]*)"$`, theTaskInWorkspaceShouldHavePriority)

	// --- Then: JSON assertions ---
	ctx.Step(`^the JSON output should be valid$`, theJSONOutputShouldBeValid)
	ctx.Step(`^the JSON output should have "([^"]*)" equal to "([^"]*)"$`, theJSONOutputShouldHaveEqualTo)
}

func aLocalWorkspaceAt(ctx context.Context, name, relPath string) error {
	env := getTestEnv(ctx)
	_, err := env.WorkspaceDir(strings.TrimPrefix(relPath, "./"))
	return err
}

func aSyncPairFromToWithDirection(ctx context.Context, pairName, from, to, direction string) error {
	env := getTestEnv(ctx)
	gen := support.NewConfigGenerator()
	return gen.GenerateLocalPair(env, from, "./"+from, to, "./"+to, pairName, direction)
}

func nextGid(ctx context.Context) string {
	counter, _ := ctx.Value(gidCounterKey).(*int)
	*counter++
	return fmt.Sprintf("t%d", *counter)
}

func taskExistsInWorkspace(ctx context.Context, title, workspace string) error {
	return createTaskFixture(ctx, title, workspace, "")
}

func taskExistsInWorkspaceWithPriority(ctx context.Context, title, workspace, priority string) error {
	return createTaskFixture(ctx, title, workspace, priority)
}

func createTaskFixture(ctx context.Context, title, workspace, priority string) error {
	env := getTestEnv(ctx)
	dir := env.Path(workspace)
	tf := &support.TaskFile{
		Gid:      nextGid(ctx),
		Name:     title,
		Priority: priority,
		Created:  time.Now().UTC().Format(time.RFC3339),
	}
	return support.WriteTaskFile(dir, tf)
}

func taskInWorkspaceIsUpdatedToPriority(ctx context.Context, title, workspace, priority string) error {
	env := getTestEnv(ctx)
	dir := env.Path(workspace)
	tf, err := support.FindTaskFileByName(dir, title)
	if err != nil {
		return err
	}
	if tf == nil {
		return fmt.Errorf("task %q not found in workspace %q", title, workspace)
	}
	tf.Priority = priority
	tf.Updated = time.Now().UTC().Add(time.Minute).Format(time.RFC3339)
	return support.WriteTaskFile(dir, tf)
}

func iRun(ctx context.Context, command string) (context.Context, error) {
	runner := getCLIRunner(ctx)
	result := runner.Run(command)
	ctx = context.WithValue(ctx, lastResultKey, result)
	return ctx, nil
}

func theExitCodeShouldBe(ctx context.Context, expected int) error {
	result := getLastResult(ctx)
	if result == nil {
		return fmt.Errorf("no command has been run yet")
	}
	if result.ExitCode != expected {
		return fmt.Errorf("exit code = %d, want %d (stdout=%q stderr=%q)", result.ExitCode, expected, result.Stdout, result.Stderr)
	}
	return nil
}

func stdoutShouldContain(ctx context.Context, substr string) error {
	result := getLastResult(ctx)
	if result == nil || !result.StdoutContains(substr) {
		return fmt.Errorf("stdout does not contain %q: %q", substr, resultStdout(result))
	}
	return nil
}

func stdoutShouldNotContain(ctx context.Context, substr string) error {
	result := getLastResult(ctx)
	if result != nil && result.StdoutContains(substr) {
		return fmt.Errorf("stdout unexpectedly contains %q: %q", substr, result.Stdout)
	}
	return nil
}

func stderrShouldContain(ctx context.Context, substr string) error {
	result := getLastResult(ctx)
	if result == nil || !result.StderrContains(substr) {
		return fmt.Errorf("stderr does not contain %q: %q", substr, resultStderr(result))
	}
	return nil
}

func resultStdout(r *support.CommandResult) string {
	if r == nil {
		return ""
	}
	return r.Stdout
}

func resultStderr(r *support.CommandResult) string {
	if r == nil {
		return ""
	}
	return r.Stderr
}

func workspaceShouldContainTaskTitled(ctx context.Context, workspace, title string) error {
	env := getTestEnv(ctx)
	tf, err := support.FindTaskFileByName(env.Path(workspace), title)
	if err != nil {
		return err
	}
	if tf == nil {
		return fmt.Errorf("workspace %q has no task titled %q", workspace, title)
	}
	return nil
}

func workspaceShouldNotContainTaskTitled(ctx context.Context, workspace, title string) error {
	env := getTestEnv(ctx)
	tf, err := support.FindTaskFileByName(env.Path(workspace), title)
	if err != nil {
		return err
	}
	if tf != nil {
		return fmt.Errorf("workspace %q unexpectedly has a task titled %q", workspace, title)
	}
	return nil
}

func theTaskInWorkspaceShouldHavePriority(ctx context.Context, title, workspace, priority string) error {
	env := getTestEnv(ctx)
	tf, err := support.FindTaskFileByName(env.Path(workspace), title)
	if err != nil {
		return err
	}
	if tf == nil {
		return fmt.Errorf("workspace %q has no task titled %q", workspace, title)
	}
	if tf.Priority != priority {
		return fmt.Errorf("task %q in workspace %q has priority %q, want %q", title, workspace, tf.Priority, priority)
	}
	return nil
}

func theJSONOutputShouldBeValid(ctx context.Context) error {
	result := getLastResult(ctx)
	if result == nil {
		return fmt.Errorf("no command has been run yet")
	}
	parsed := support.ParseJSONFromResult(result)
	if !parsed.Valid() {
		return fmt.Errorf("stdout is not valid JSON: %s (stdout=%q)", parsed.Error(), result.Stdout)
	}
	return nil
}

func theJSONOutputShouldHaveEqualTo(ctx context.Context, path, expected string) error {
	result := getLastResult(ctx)
	if result == nil {
		return fmt.Errorf("no command has been run yet")
	}
	parsed := support.ParseJSONFromResult(result)
	if !parsed.Valid() {
		return fmt.Errorf("stdout is not valid JSON: %s", parsed.Error())
	}
	got := parsed.Get(path)
	gotStr := fmt.Sprintf("%v", got)
	if floatVal, ok := got.(float64); ok {
		gotStr = strconv.FormatFloat(floatVal, 'f', -1, 64)
	}
	if gotStr != expected {
		return fmt.Errorf("JSON path %q = %q, want %q (full output: %s)", path, gotStr, expected, result.Stdout)
	}
	return nil
}
