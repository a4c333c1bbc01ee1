// Package app 组装 ipclass 命令行工具
package app

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/songzhibin97/ipclass"
	"github.com/songzhibin97/ipclass/internal/config"
	"github.com/songzhibin97/ipclass/internal/shell"
)

// blockStore 是可关闭的地址块存储
type blockStore interface {
	ipclass.BlockStorage
	io.Closer
}

// storageOpener 按连接配置打开持久化存储
type storageOpener func(ctx context.Context, cfg ipclass.SQLConfig) (blockStore, error)

func openSQLStorage(ctx context.Context, cfg ipclass.SQLConfig) (blockStore, error) {
	s, err := ipclass.NewSQLBlockStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// App 保存命令执行期间共享的依赖
type App struct {
	cfg         *config.Config
	in          io.Reader
	out         io.Writer
	logger      *log.Logger
	prompt      string
	openStorage storageOpener
}

// New 创建应用，in/out 为命令的标准输入输出，日志写入 errOut
func New(cfg *config.Config, in io.Reader, out, errOut io.Writer) *App {
	logger := log.NewWithOptions(errOut, log.Options{
		Prefix: "ipclass",
		Level:  cfg.Level(),
	})
	return &App{
		cfg:         cfg,
		in:          in,
		out:         out,
		logger:      logger,
		prompt:      shell.DefaultPrompt,
		openStorage: openSQLStorage,
	}
}

// Run 加载配置并执行命令
func Run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	return New(cfg, os.Stdin, os.Stdout, os.Stderr).Command().Execute()
}

// Command 构建命令树
func (a *App) Command() *cobra.Command {
	root := &cobra.Command{
		Use:           "ipclass",
		Short:         "按 IANA 特殊用途地址注册表对 IP 地址分类",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// 命令行参数与环境变量使用同样的驱动名称规范
			a.cfg.DBDriver = strings.ToLower(strings.TrimSpace(a.cfg.DBDriver))
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			a.logger.SetLevel(a.cfg.Level())
			return nil
		},
		RunE: a.runShell,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfg.DBDriver, "db-driver", a.cfg.DBDriver, "registry database driver: mysql or postgres")
	flags.StringVar(&a.cfg.DBDSN, "db-dsn", a.cfg.DBDSN, "registry database DSN")
	flags.StringVar(&a.cfg.BlocksFile, "blocks", a.cfg.BlocksFile, "TOML file with extra reserved blocks")
	flags.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level: debug, info, warn, error")
	root.Flags().StringVar(&a.prompt, "prompt", a.prompt, "interactive prompt")

	check := &cobra.Command{
		Use:   "check [address...]",
		Short: "对参数或标准输入中的地址分类",
		RunE:  a.runCheck,
	}
	check.Flags().BoolVar(&a.cfg.JSON, "json", a.cfg.JSON, "output JSON lines")

	blocks := &cobra.Command{
		Use:   "blocks",
		Short: "显示保留地址块注册表",
		Args:  cobra.NoArgs,
		RunE:  a.runBlocks,
	}

	root.AddCommand(check, blocks)
	return root
}

// registry 按配置构建注册表，返回的 closer 用于释放数据库连接
func (a *App) registry(ctx context.Context) (*ipclass.Registry, func(), error) {
	closer := func() {}

	var storage ipclass.BlockStorage
	if a.cfg.DBDriver != "" {
		db, err := a.openStorage(ctx, ipclass.SQLConfig{
			DriverName:     a.cfg.DBDriver,
			DataSourceName: a.cfg.DBDSN,
			MaxOpenConns:   2,
		})
		if err != nil {
			return nil, closer, err
		}
		storage = db
		closer = func() {
			if err := db.Close(); err != nil {
				a.logger.Warn("关闭数据库连接失败", "error", err)
			}
		}
		a.logger.Debug("使用数据库注册表", "driver", a.cfg.DBDriver)
	}

	reg, err := ipclass.NewRegistry(ctx, storage)
	if err != nil {
		closer()
		return nil, func() {}, err
	}
	reg.WithLogger(a.logger)

	if storage != nil {
		// 只有空表才写入默认保留地址块，运维删除的地址块保持删除
		seeded, err := reg.SeedDefaults(ctx)
		if err != nil {
			closer()
			return nil, func() {}, err
		}
		if seeded > 0 {
			a.logger.Info("已写入默认保留地址块", "added", seeded)
		}
	}

	if a.cfg.BlocksFile != "" {
		added, err := reg.LoadFile(ctx, a.cfg.BlocksFile)
		if err != nil {
			closer()
			return nil, func() {}, err
		}
		a.logger.Info("已加载地址块文件", "path", a.cfg.BlocksFile, "added", added)
	}

	return reg, closer, nil
}

func (a *App) classifier(ctx context.Context) (*ipclass.Classifier, error) {
	if a.cfg.DBDriver == "" && a.cfg.BlocksFile == "" {
		return ipclass.Default(), nil
	}

	reg, closer, err := a.registry(ctx)
	if err != nil {
		return nil, err
	}
	defer closer()

	return reg.Classifier(ctx)
}

func (a *App) runShell(cmd *cobra.Command, args []string) error {
	c, err := a.classifier(cmd.Context())
	if err != nil {
		return err
	}

	sh := shell.New(c, a.out)
	sh.SetPrompt(a.prompt)
	if f, ok := a.in.(*os.File); ok && shell.IsTerminal(f) {
		return sh.Run()
	}
	return sh.RunReader(a.in)
}

type checkResult struct {
	Input       string           `json:"input"`
	Category    ipclass.Category `json:"category"`
	Version     int              `json:"version,omitempty"`
	Block       string           `json:"block,omitempty"`
	Description string           `json:"description,omitempty"`
	RFC         string           `json:"rfc,omitempty"`
}

func (a *App) runCheck(cmd *cobra.Command, args []string) error {
	c, err := a.classifier(cmd.Context())
	if err != nil {
		return err
	}

	inputs := args
	if len(inputs) == 0 {
		inputs, err = readAddresses(a.in)
		if err != nil {
			return err
		}
	}

	enc := json.NewEncoder(a.out)
	for _, raw := range inputs {
		res := c.Explain(raw)
		if !a.cfg.JSON {
			fmt.Fprintf(a.out, "%s\t%s\n", raw, res.Category)
			continue
		}

		out := checkResult{Input: raw, Category: res.Category, Version: res.Address.Version}
		if !res.Block.IsZero() {
			out.Block = res.Block.String()
			out.Description = res.Block.Description
			out.RFC = res.Block.RFC
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) runBlocks(cmd *cobra.Command, args []string) error {
	reg, closer, err := a.registry(cmd.Context())
	if err != nil {
		return err
	}
	defer closer()

	summary, err := reg.String(cmd.Context())
	if err != nil {
		return err
	}
	_, err = io.WriteString(a.out, summary)
	return err
}

// readAddresses 逐行读取地址，一行中可以用逗号、分号或空白分隔多个地址
func readAddresses(r io.Reader) ([]string, error) {
	var out []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ';' || r == '\t' || r == ' '
		})
		out = append(out, parts...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取输入失败: %w", err)
	}

	return out, nil
}
