package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "instrumentd", cmd.Use)
	assert.Contains(t, cmd.Long, "INSTRUMENTD_DB")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"validate", "exec", "replay", "trace", "show", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	logFormatFlag := cmd.PersistentFlags().Lookup("log-format")
	require.NotNil(t, logFormatFlag)
	assert.Equal(t, "", logFormatFlag.DefValue)
}

func TestJournalCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   []string
	}{
		{"exec", []string{"db", "config"}},
		{"replay", []string{"db", "config", "flow"}},
		{"trace", []string{"db", "flow", "kind", "instrument", "issuance"}},
		{"show", []string{"db", "config", "instrument", "name", "issuance", "key"}},
		{"test", []string{"update", "filter"}},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			sub, _, err := NewRootCommand().Find([]string{tt.command})
			require.NoError(t, err)
			for _, name := range tt.flags {
				assert.NotNil(t, sub.Flags().Lookup(name), "flag --%s", name)
			}
		})
	}
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)
}

func TestFormatValidation(t *testing.T) {
	// Test valid formats
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	// Test invalid formats
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"output format", []string{"--format", "invalid", "validate", "catalog.cue"}, "invalid format"},
		{"log format", []string{"--log-format", "xml", "validate", "catalog.cue"}, "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewRootCommand()
			cmd.SetArgs(tt.args)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})

			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInvalidEnvironment(t *testing.T) {
	t.Setenv("INSTRUMENTD_LOG_LEVEL", "chatty")

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"validate", "catalog.cue"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootOptions_Defaults(t *testing.T) {
	opts := &RootOptions{}
	opts.Env.DB = "env.db"
	opts.Env.Config = "env.cue"

	assert.Equal(t, "flag.db", opts.database("flag.db"))
	assert.Equal(t, "env.db", opts.database(""))

	path, err := opts.catalogPath("")
	require.NoError(t, err)
	assert.Equal(t, "env.cue", path)

	opts.Env.Config = ""
	_, err = opts.catalogPath("")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootOptions_LoggerFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	opts := &RootOptions{LogFormat: "json", LogWriter: buf}

	opts.Logger().Info("session ready", "restored", 2)
	assert.Contains(t, buf.String(), `"msg":"session ready"`)
	assert.Contains(t, buf.String(), `"restored":2`)

	// Cached after first use
	assert.Same(t, opts.Logger(), opts.Logger())
}
