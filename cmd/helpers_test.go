package cmd

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/iksnae/chef-chat/internal"
	"github.com/iksnae/chef-chat/testutil"
)

// executeCommand runs the root command with args and fresh flag values,
// returning everything written to the command's output
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv(internal.EnvBaseURL, "")
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// openTestStore opens the store of dataDir for seeding or inspection
func openTestStore(t *testing.T, dataDir string) *internal.Storage {
	t.Helper()
	paths, err := internal.DetectDataPaths(dataDir)
	require.NoError(t, err)
	require.NoError(t, paths.EnsureBaseDir())
	store, err := internal.OpenStorage(paths.StorePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// newAssistantServer answers guest turns with the given stream
func newAssistantServer(t *testing.T, reply ...interface{}) *testutil.Server {
	t.Helper()
	srv := testutil.NewServer(t)
	endpoints := internal.DefaultConfig().Endpoints
	srv.Handle(endpoints.OnboardingStream, func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSSE(w, reply...)
	})
	srv.Handle(endpoints.GuestNew, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"guest_id":"guest-cli"}`))
	})
	return srv
}
