package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionflow/internal/core"
	"sessionflow/pkg/domain"
)

var labSources = map[string]string{
	"lab/labs.csv": "lab,lab_name,institution,address,time_zone,location,location_description\n" +
		"LabA,The Example Lab,Example Uni,'221B Baker St,London NW1 6XE,UK',UTC+0,Example Building,'2nd floor lab'\n",
	"lab/projects.csv":      "project,project_description,repository_url,repository_name\nProjA,Example project,https://github.com/datajoint/element-lab/,element-lab\n",
	"lab/publications.csv":  "project,publication\nProjA,arXiv:1807.11104\n",
	"lab/keywords.csv":      "project,keyword\nProjA,Study\nProjA,Example\n",
	"lab/protocols.csv":     "protocol,protocol_type,protocol_description\nProtA,IRB expedited review,Protocol for managing data ingestion\n",
	"lab/users.csv":         "lab,user,user_role,user_email,user_cellphone\nLabA,Sherlock,PI,Sherlock@BakerSt.com,+44 20 7946 0344\nLabA,User1,Lab Tech,fake@email.com,\n",
	"lab/project_users.csv": "user,project\nSherlock,ProjA\n",
	"lab/sources.csv":       "source,source_name\nProvider1,Example Provider\n",
}

type env struct {
	dir    string
	dbPath string
	root   string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	e := env{dir: dir, dbPath: filepath.Join(dir, "flow.db"), root: filepath.Join(dir, "user_data")}
	require.NoError(t, os.MkdirAll(e.root, 0o755))
	for _, name := range []string{"DJ_HOST", "DATABASE_PREFIX", "SESSIONFLOW_SAFEMODE", "SESSIONFLOW_ROOT_DATA_DIR", "SESSIONFLOW_LOGLEVEL"} {
		t.Setenv(name, "")
		_ = os.Unsetenv(name)
	}
	t.Setenv("SESSIONFLOW_STORAGE_DRIVER", "sqlite")
	t.Setenv("SESSIONFLOW_SQLITE_PATH", e.dbPath)
	t.Setenv("SESSIONFLOW_BLOB_DRIVER", "fs")
	t.Setenv("SESSIONFLOW_BLOB_FS_ROOT", e.root)
	return e
}

func (e env) write(t *testing.T, files map[string]string) {
	t.Helper()
	for key, content := range files {
		path := filepath.Join(e.root, filepath.FromSlash(key))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{
		"--config", filepath.Join(e.dir, "missing.json"),
		"--env-file", filepath.Join(e.dir, "missing.env"),
	}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIngestLabCommand(t *testing.T) {
	e := newEnv(t)
	e.write(t, labSources)

	out, err := e.run(t, "ingest", "lab", "--quote", "'")
	require.NoError(t, err)
	assert.Contains(t, out, "lab.Lab")
	assert.Contains(t, out, "lab.ProjectKeywords")
	assert.Regexp(t, `lab\.User\s+lab/users\.csv\s+2\s+2\s+0\s+0`, out)

	out, err = e.run(t, "ingest", "lab", "--quote", "'")
	require.NoError(t, err, "re-runs skip duplicates by default")
	assert.Regexp(t, `lab\.User\s+lab/users\.csv\s+2\s+0\s+2\s+0`, out)

	_, err = e.run(t, "ingest", "lab", "--quote", "'", "--skip-duplicates=false")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDuplicate)

	_, err = e.run(t, "ingest", "lab", "--quote", "''")
	assert.ErrorContains(t, err, "single character")
}

func TestIngestWritesMetricsAndTrace(t *testing.T) {
	e := newEnv(t)
	e.write(t, labSources)
	metrics := filepath.Join(e.dir, "sessionflow.prom")
	trace := filepath.Join(e.dir, "trace.jsonl")

	_, err := e.run(t, "ingest", "lab", "--quote", "'", "--metrics-textfile", metrics, "--trace-file", trace)
	require.NoError(t, err)

	raw, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `sessionflow_ingest_rows_inserted_total{table="lab.Lab"} 1`)

	raw, err = os.ReadFile(trace)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 13)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "lab.Lab", entry["table"])
	assert.Equal(t, "success", entry["status"])
}

func TestSchemaCommands(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "schema", "activate")
	require.NoError(t, err)
	assert.Contains(t, out, "activated")
	assert.Contains(t, out, "sqlite")

	out, err = e.run(t, "schema", "describe", "Protocol")
	require.NoError(t, err)
	assert.Contains(t, out, "lab.Protocol (lookup)")
	assert.Contains(t, out, "-> lab.ProtocolType")

	out, err = e.run(t, "schema", "deps", "Lab")
	require.NoError(t, err)
	assert.Contains(t, out, "parents: -")
	assert.Contains(t, out, "lab.LabMembership")
	assert.Contains(t, out, "subject.Subject.Lab")

	out, err = e.run(t, "schema", "ddl", "--dialect", "mysql")
	require.NoError(t, err)
	assert.Contains(t, out, "ENGINE=InnoDB")

	_, err = e.run(t, "schema", "describe", "Nope")
	assert.Error(t, err)

	_, err = e.run(t, "schema", "drop")
	assert.ErrorIs(t, err, core.ErrSafeMode)
	out, err = e.run(t, "schema", "drop", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "dropped")
}

func TestTeardownHonoursSafeMode(t *testing.T) {
	e := newEnv(t)
	e.write(t, labSources)
	_, err := e.run(t, "ingest", "lab", "--quote", "'")
	require.NoError(t, err)

	_, err = e.run(t, "teardown")
	assert.ErrorIs(t, err, core.ErrSafeMode)

	out, err := e.run(t, "teardown", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "all rows deleted")

	t.Setenv("SESSIONFLOW_SAFEMODE", "false")
	_, err = e.run(t, "teardown")
	assert.NoError(t, err)
}

func TestDataCommands(t *testing.T) {
	e := newEnv(t)
	local := filepath.Join(e.dir, "sessions.csv")
	require.NoError(t, os.WriteFile(local, []byte("subject,session_datetime\n"), 0o644))

	out, err := e.run(t, "data", "put", local, "session/sessions.csv")
	require.NoError(t, err)
	assert.Contains(t, out, "stored session/sessions.csv (25 bytes)")

	_, err = e.run(t, "data", "put", local, "session/sessions.csv")
	assert.Error(t, err, "keys are create-only")

	e.write(t, map[string]string{"lab/labs.csv": "lab\n"})
	out, err = e.run(t, "data", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "session/sessions.csv")
	assert.Contains(t, out, "lab/labs.csv")

	out, err = e.run(t, "data", "ls", "lab/")
	require.NoError(t, err)
	assert.NotContains(t, out, "session/sessions.csv")
}

func TestSessionDirCommand(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p, err := core.OpenPipeline(ctx, core.StorageConfig{Driver: core.StorageSQLite, SQLitePath: e.dbPath})
	require.NoError(t, err)
	require.NoError(t, p.Activate(ctx))
	for _, step := range []struct {
		table string
		row   domain.Row
	}{
		{"Subject", domain.Row{"subject": "subject6", "sex": "M", "subject_birth_date": "2020-01-01"}},
		{"Session", domain.Row{"subject": "subject6", "session_datetime": "2021-06-02 14:04:22"}},
		{"SessionDirectory", domain.Row{"subject": "subject6", "session_datetime": "2021-06-02 14:04:22", "session_dir": "/subject6/session1"}},
	} {
		require.NoError(t, p.Insert1(ctx, p.Catalog().MustTable(step.table), step.row, core.InsertOptions{}))
	}
	require.NoError(t, p.Close())

	out, err := e.run(t, "session", "dir", "--subject", "subject6", "--datetime", "2021-06-02 14:04:22")
	require.NoError(t, err)
	assert.Equal(t, "/subject6/session1\n", out)

	data := filepath.Join(e.dir, "raw")
	require.NoError(t, os.MkdirAll(filepath.Join(data, "subject6", "session1"), 0o755))
	t.Setenv("SESSIONFLOW_ROOT_DATA_DIR", data)
	out, err = e.run(t, "session", "dir", "--subject", "subject6", "--datetime", "2021-06-02 14:04:22", "--resolve")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(data, "subject6", "session1")+"\n", out)

	_, err = e.run(t, "session", "dir", "--subject", "subject6", "--datetime", "2021-06-03 00:00:00")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
