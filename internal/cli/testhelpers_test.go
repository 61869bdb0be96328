package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const testRules = `
freeze:
  rules:
    - domain: AAFWK
      eventId: LIFECYCLE_TIMEOUT
      links:
        - {domain: AAFWK, eventId: LIFECYCLE_TIMEOUT, window: 0, result: {code: 0, scope: app}}
    - domain: ACE
      eventId: UI_BLOCK_6S
      links:
        - {domain: ACE, eventId: UI_BLOCK_6S, window: 0, result: {code: 0, scope: app}}
        - {domain: ACE, eventId: UI_BLOCK_3S, window: -6000, result: {code: 0, scope: app, samePackage: true}}
        - {domain: ACE, eventId: UI_BLOCK_RECOVERED, window: 3000, result: {code: 0, scope: app, samePackage: true}}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// writeConfig lays out a rule file and a config pointing all state into dir.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	rulesPath := writeFile(t, dir, "freeze_rules.yaml", testRules)
	return writeFile(t, dir, "config.yaml", `
rules:
  path: `+rulesPath+`
store:
  path: `+filepath.Join(dir, "state", "events.db")+`
reports:
  dir: `+filepath.Join(dir, "reports")+`
  time_zone: UTC
admin:
  addr: ""
log:
  level: error
`)
}

func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
