package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/grantscout/api/schemas"
	"github.com/xkilldash9x/grantscout/internal/automation"
	"github.com/xkilldash9x/grantscout/internal/browser/browsertest"
	"github.com/xkilldash9x/grantscout/internal/config"
	"github.com/xkilldash9x/grantscout/internal/observability"
)

// resetForTest isolates a test from the working directory, the environment
// and the global logger.
func resetForTest(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, key := range []string{
		"GEMINI_API_KEY", "GRANTSCOUT_AGENT_LLM_API_KEY",
		"MYUSERNAME", "GRANTSCOUT_SITE_USERNAME",
		"MYPASSWORD", "GRANTSCOUT_SITE_PASSWORD",
		"DATABASE_URL", "GRANTSCOUT_DATABASE_URL",
		"FLASK_SECRET_KEY", "GRANTSCOUT_SESSION_SECRET",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("GRANTSCOUT_LOGGER_LEVEL", "fatal")

	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)
}

type stubLLM struct {
	closed atomic.Bool
}

func (s *stubLLM) Generate(context.Context, schemas.GenerationRequest) (string, error) {
	return "", errors.New("stub model does not answer")
}

func (s *stubLLM) Close() error {
	s.closed.Store(true)
	return nil
}

// stubComponents replaces the Gemini, Chrome and clipboard constructors.
func stubComponents(t *testing.T, llm schemas.LLMClient, sessions automation.SessionFactory) {
	t.Helper()
	origLLM, origSessions, origClipboard := newLLMClient, newSessionFactory, systemClipboard
	t.Cleanup(func() {
		newLLMClient, newSessionFactory, systemClipboard = origLLM, origSessions, origClipboard
	})

	newLLMClient = func(context.Context, config.LLMConfig, *zap.Logger) (schemas.LLMClient, error) {
		return llm, nil
	}
	newSessionFactory = func(config.BrowserConfig, *zap.Logger) automation.SessionFactory {
		return sessions
	}
	systemClipboard = &browsertest.Clipboard{}
}

func execute(t *testing.T, root *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// withProbe adds a subcommand that captures the loaded configuration.
func withProbe(root *cobra.Command, captured **config.Config) *cobra.Command {
	root.AddCommand(&cobra.Command{
		Use: "probe",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			*captured = cfg
			return err
		},
	})
	return root
}

func TestRootCmd_VersionFlag(t *testing.T) {
	resetForTest(t)
	out, err := execute(t, NewRootCommand(), "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "grantscout version "+Version)
}

func TestRootCmd_NoArgs(t *testing.T) {
	resetForTest(t)
	out, err := execute(t, NewRootCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "GrantScout finds research grants")
	assert.Contains(t, out, "serve")
	assert.Contains(t, out, "search")
}

func TestVersionCmd(t *testing.T) {
	resetForTest(t)
	out, err := execute(t, NewRootCommand(), "version")
	require.NoError(t, err)
	assert.Equal(t, "grantscout "+Version+"\n", out)
}

func TestConfig_DefaultsWithoutFile(t *testing.T) {
	resetForTest(t)
	var cfg *config.Config
	_, err := execute(t, withProbe(NewRootCommand(), &cfg), "probe")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":5000", cfg.Server().Addr)
	assert.Equal(t, "grants.csv", cfg.Automation().Output)
	assert.NotEmpty(t, cfg.Server().SessionSecret, "a random secret is generated when none is set")
	assert.False(t, cfg.Site().HasCredentials())
}

func TestConfig_FileAndEnvironment(t *testing.T) {
	resetForTest(t)
	path := filepath.Join(t.TempDir(), "grantscout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: "127.0.0.1:8080"
site:
  institution: "Test University"
automation:
  output: "/tmp/out.csv"
  max_concurrent: 2
`), 0o600))
	t.Setenv("GRANTSCOUT_AGENT_MAX_STEPS", "7")
	t.Setenv("MYUSERNAME", "alice")
	t.Setenv("MYPASSWORD", "hunter2")
	t.Setenv("GEMINI_API_KEY", "key")

	var cfg *config.Config
	_, err := execute(t, withProbe(NewRootCommand(), &cfg), "probe", "--config", path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server().Addr)
	assert.Equal(t, "Test University", cfg.Site().Institution)
	assert.Equal(t, "/tmp/out.csv", cfg.Automation().Output)
	assert.Equal(t, 2, cfg.Automation().MaxConcurrent)
	assert.Equal(t, 7, cfg.Agent().MaxSteps)
	assert.Equal(t, "key", cfg.Agent().LLM.APIKey)
	assert.True(t, cfg.Site().HasCredentials())
}

func TestConfig_MalformedFile(t *testing.T) {
	resetForTest(t)
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated\n"), 0o600))

	var cfg *config.Config
	_, err := execute(t, withProbe(NewRootCommand(), &cfg), "probe", "-c", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize configuration")
	assert.Nil(t, cfg)
}

func TestConfig_ValidationFailure(t *testing.T) {
	resetForTest(t)
	t.Setenv("GRANTSCOUT_AGENT_MAX_STEPS", "0")

	var cfg *config.Config
	_, err := execute(t, withProbe(NewRootCommand(), &cfg), "probe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent.max_steps")
}

func TestExecute_ReturnsCommandError(t *testing.T) {
	resetForTest(t)
	t.Setenv("GRANTSCOUT_AGENT_MAX_STEPS", "0")
	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = []string{"grantscout", "search", "--prompt", "x"}

	err := Execute(context.Background())
	assert.Error(t, err)
}

func TestServeCmd_ShutsDownOnCancel(t *testing.T) {
	resetForTest(t)
	llm := &stubLLM{}
	stubComponents(t, llm, func(context.Context) (automation.Session, error) {
		return nil, errors.New("no browser in tests")
	})

	root := NewRootCommand()
	root.SetArgs([]string{"serve", "--addr", "127.0.0.1:0"})
	root.SetOut(&bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
	assert.True(t, llm.closed.Load(), "the LLM client is closed on shutdown")
}
