package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/ipclass"
	"github.com/songzhibin97/ipclass/internal/config"
	"github.com/songzhibin97/ipclass/internal/shell"
)

func run(t *testing.T, cfg *config.Config, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := New(cfg, strings.NewReader(stdin), &out, &errOut).Command()
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// closableStorage 在内存存储上记录关闭次数，模拟跨进程保留的数据库表
type closableStorage struct {
	*ipclass.MemoryBlockStorage
	closed int
}

func (s *closableStorage) Close() error {
	s.closed++
	return nil
}

func runWithStorage(t *testing.T, cfg *config.Config, open storageOpener, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	a := New(cfg, strings.NewReader(""), &out, &errOut)
	a.openStorage = open
	cmd := a.Command()
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheck_Args(t *testing.T) {
	out, _, err := run(t, &config.Config{LogLevel: "info"}, "", "check", "8.8.8.8", "10.0.0.1", "bogus")
	require.NoError(t, err)

	assert.Equal(t, "8.8.8.8\tPUBLIC\n10.0.0.1\tPRIVATE\nbogus\tINVALID\n", out)
}

func TestCheck_Stdin(t *testing.T) {
	stdin := "# comment\n127.0.0.1, ::1\n\n192.0.2.1;240.0.0.1\n"
	out, _, err := run(t, &config.Config{LogLevel: "info"}, stdin, "check")
	require.NoError(t, err)

	want := "127.0.0.1\tLOOPBACK\n::1\tLOOPBACK\n192.0.2.1\tDOCUMENTATION\n240.0.0.1\tRESERVED\n"
	assert.Equal(t, want, out)
}

func TestCheck_JSON(t *testing.T) {
	out, _, err := run(t, &config.Config{LogLevel: "info"}, "", "check", "--json", "172.16.5.5", "1.1.1.1")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "172.16.5.5", first["input"])
	assert.Equal(t, "PRIVATE", first["category"])
	assert.Equal(t, "172.16.0.0/12", first["block"])
	assert.Equal(t, "RFC 1918", first["rfc"])
	assert.EqualValues(t, 4, first["version"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "PUBLIC", second["category"])
	assert.NotContains(t, second, "block")
}

func TestCheck_BlocksFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[block]]\nprefix = \"8.8.8.0/24\"\ndescription = \"lab\"\n"), 0o644))

	cfg := &config.Config{LogLevel: "error", BlocksFile: path}
	out, _, err := run(t, cfg, "", "check", "8.8.8.8", "8.8.4.4")
	require.NoError(t, err)

	assert.Equal(t, "8.8.8.8\tRESERVED\n8.8.4.4\tPUBLIC\n", out)
}

func TestShell_NonInteractive(t *testing.T) {
	out, _, err := run(t, &config.Config{LogLevel: "info"}, "ff02::1\n\nexit\n8.8.8.8\n")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "MULTICAST\n"))
	assert.NotContains(t, out, "PUBLIC")
}

func TestBlocks(t *testing.T) {
	out, _, err := run(t, &config.Config{LogLevel: "info"}, "", "blocks")
	require.NoError(t, err)

	assert.Contains(t, out, "100.64.0.0/10")
	assert.Contains(t, out, "2001:db8::/32")
}

func TestInvalidConfig(t *testing.T) {
	_, _, err := run(t, &config.Config{LogLevel: "info", DBDriver: "oracle", DBDSN: "x"}, "", "check", "8.8.8.8")
	assert.Error(t, err)

	_, _, err = run(t, &config.Config{LogLevel: "info"}, "", "check", "--log-level", "loud", "8.8.8.8")
	assert.Error(t, err)
}

func TestReadAddresses(t *testing.T) {
	got, err := readAddresses(strings.NewReader("a b\tc\n# skip\n\nd,e;f\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, got)
}

func TestCheck_DatabaseKeepsRemovedDefaults(t *testing.T) {
	storage := &closableStorage{MemoryBlockStorage: ipclass.NewMemoryBlockStorage()}
	var drivers []string
	open := func(ctx context.Context, cfg ipclass.SQLConfig) (blockStore, error) {
		drivers = append(drivers, cfg.DriverName)
		return storage, nil
	}
	cfg := func() *config.Config {
		return &config.Config{LogLevel: "error", DBDSN: "dsn"}
	}

	// 首次运行写入默认地址块
	out, err := runWithStorage(t, cfg(), open, "--db-driver", "MySQL", "check", "240.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "240.0.0.1\tRESERVED\n", out)

	count, err := storage.BlockCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(ipclass.DefaultReservedBlocks()), count)

	require.NoError(t, storage.RemoveBlock(context.Background(), "240.0.0.0/4"))

	out, err = runWithStorage(t, cfg(), open, "--db-driver", "mysql", "check", "240.0.0.1", "100.64.0.1")
	require.NoError(t, err)
	assert.Equal(t, "240.0.0.1\tPUBLIC\n100.64.0.1\tRESERVED\n", out)

	has, err := storage.HasBlock(context.Background(), "240.0.0.0/4")
	require.NoError(t, err)
	assert.False(t, has)

	assert.Equal(t, []string{"mysql", "mysql"}, drivers)
	assert.Equal(t, 2, storage.closed)
}

func TestCheck_DatabaseBlocksFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[block]]\nprefix = \"8.8.8.0/24\"\ndescription = \"lab\"\n"), 0o644))

	storage := &closableStorage{MemoryBlockStorage: ipclass.NewMemoryBlockStorage()}
	open := func(ctx context.Context, cfg ipclass.SQLConfig) (blockStore, error) {
		return storage, nil
	}

	cfg := &config.Config{LogLevel: "error", DBDriver: "postgres", DBDSN: "dsn", BlocksFile: path}
	out, err := runWithStorage(t, cfg, open, "check", "8.8.8.8", "240.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "8.8.8.8\tRESERVED\n240.0.0.1\tRESERVED\n", out)

	has, err := storage.HasBlock(context.Background(), "8.8.8.0/24")
	require.NoError(t, err)
	assert.True(t, has)
	assert.Equal(t, 1, storage.closed)
}

func TestCheck_DatabaseOpenError(t *testing.T) {
	open := func(ctx context.Context, cfg ipclass.SQLConfig) (blockStore, error) {
		return nil, errors.New("connection refused")
	}

	cfg := &config.Config{LogLevel: "error", DBDriver: "mysql", DBDSN: "dsn"}
	_, err := runWithStorage(t, cfg, open, "check", "8.8.8.8")
	assert.ErrorContains(t, err, "connection refused")
}

func TestCheck_SQLStorage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS reserved_blocks")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// 表中已有数据，不写入默认地址块
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reserved_blocks")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT prefix, description, rfc FROM reserved_blocks ORDER BY prefix")).
		WillReturnRows(sqlmock.NewRows([]string{"prefix", "description", "rfc"}).
			AddRow("100.64.0.0/10", "Shared Address Space", "RFC 6598"))
	mock.ExpectClose()

	open := func(ctx context.Context, cfg ipclass.SQLConfig) (blockStore, error) {
		s, err := ipclass.NewSQLBlockStorageFromDB(ctx, db, cfg.DriverName)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	cfg := &config.Config{LogLevel: "error", DBDriver: "mysql", DBDSN: "dsn"}
	out, err := runWithStorage(t, cfg, open, "check", "240.0.0.1", "100.64.0.1")
	require.NoError(t, err)
	assert.Equal(t, "240.0.0.1\tPUBLIC\n100.64.0.1\tRESERVED\n", out)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromptFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	a := New(&config.Config{LogLevel: "info"}, strings.NewReader("q\n"), &out, &errOut)
	assert.Equal(t, shell.DefaultPrompt, a.prompt)

	cmd := a.Command()
	cmd.SetArgs([]string{"--prompt", "addr> "})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "addr> ", a.prompt)
}
