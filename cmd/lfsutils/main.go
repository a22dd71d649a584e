package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/GSI-HPC/lfs-utils/internal/client"
	"github.com/GSI-HPC/lfs-utils/internal/config"
	"github.com/GSI-HPC/lfs-utils/internal/index"
	"github.com/GSI-HPC/lfs-utils/internal/metrics"
	"github.com/GSI-HPC/lfs-utils/internal/model"
	"github.com/GSI-HPC/lfs-utils/internal/parser"
	"github.com/GSI-HPC/lfs-utils/internal/server"
	"github.com/GSI-HPC/lfs-utils/internal/service"
)

type application struct {
	cfg       *config.Config
	logger    *zap.Logger
	migration *service.MigrationService
	topology  *service.TopologyService
	metrics   *server.MetricsServer
}

func main() {
	app := &application{}

	cliApp := &cli.App{
		Name:  "lfsutils",
		Usage: "Migration and topology discovery for Lustre filesystems",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path of the configuration file",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"D"},
				Usage:   "Enable debug logging",
			},
		},
		Before: app.setup,
		After:  app.teardown,
		Commands: []*cli.Command{
			{
				Name:      "oss",
				Usage:     "Lookup OSS hostnames by an OST range specification",
				ArgsUsage: "<fsname> <rangeset>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "hex",
						Aliases: []string{"x"},
						Usage:   "Interpret the range specification as 4-digit hex indexes, e.g. \"0000, 00D6-00F1\"",
					},
				},
				Action: app.lookupOSS,
			},
			{
				Name:      "ost",
				Usage:     "Lookup OST indexes by OSS hostnames",
				ArgsUsage: "<fsname> <hostname>...",
				Action:    app.lookupOST,
			},
			{
				Name:      "migrate",
				Usage:     "Migrate a file to a different OST",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "source",
						Aliases: []string{"s"},
						Value:   model.IndexUnset,
						Usage:   "Only migrate when the file is currently on this OST index",
					},
					&cli.IntFlag{
						Name:    "target",
						Aliases: []string{"t"},
						Value:   model.IndexUnset,
						Usage:   "Requested destination OST index",
					},
					&cli.BoolFlag{
						Name:  "block",
						Usage: "Run the migration in blocking mode",
					},
					&cli.BoolFlag{
						Name:  "direct-io",
						Usage: "Use direct I/O for the data copy",
					},
					&cli.BoolFlag{
						Name:  "no-skip",
						Usage: "Also migrate files striped over multiple OSTs",
					},
				},
				Action: app.migrateFile,
			},
			{
				Name:      "check",
				Usage:     "Report whether an OST is active",
				ArgsUsage: "<fsname> <index>",
				Action:    app.checkOST,
			},
			{
				Name:      "df",
				Usage:     "Report the fill level per OST",
				ArgsUsage: "<fspath>",
				Action:    app.fillLevels,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *application) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	if c.Bool("debug") {
		cfg.Logging.Level = "debug"
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics()
		a.metrics = server.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, logger)
		go a.metrics.Start()
	}

	p := parser.NewParser(logger)
	runner := client.NewExecRunner(cfg.Lustre.Sudo, logger, m)
	lustre := client.NewLustreClient(cfg.Lustre.LfsBin, cfg.Lustre.LctlBin, runner)

	a.cfg = cfg
	a.logger = logger
	a.migration = service.NewMigrationService(lustre, p, logger, m)
	a.topology = service.NewTopologyService(lustre, client.NewDNSResolver(), p, logger, m)

	return nil
}

func (a *application) teardown(*cli.Context) error {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.metrics.Stop(ctx); err != nil {
			a.logger.Warn("Failed to stop metrics server", zap.Error(err))
		}
	}

	if a.logger != nil {
		_ = a.logger.Sync()
	}

	return nil
}

// commandContext bounds an operation with the configured command
// timeout, if any.
func (a *application) commandContext() (context.Context, context.CancelFunc) {
	if a.cfg.Lustre.CommandTimeout > 0 {
		return context.WithTimeout(context.Background(), a.cfg.Lustre.CommandTimeout)
	}
	return context.WithCancel(context.Background())
}

func (a *application) lookupOSS(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: oss <fsname> <rangeset>", 2)
	}

	fsName := c.Args().Get(0)
	rangeSpec := c.Args().Get(1)

	var (
		indexes []int
		err     error
	)

	if c.Bool("hex") {
		indexes, err = index.ExpandHexRange(rangeSpec)
	} else {
		indexes, err = index.ExpandRange(rangeSpec)
	}
	if err != nil {
		return err
	}

	ctx, cancel := a.commandContext()
	defer cancel()

	ostsPerOSS, err := a.topology.OSSByOSTIndexes(ctx, fsName, indexes)
	if err != nil {
		return err
	}

	for _, oss := range sortedKeys(ostsPerOSS) {
		fmt.Printf("%s - %v\n", oss, ostsPerOSS[oss])
	}

	return nil
}

func (a *application) lookupOST(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.Exit("usage: ost <fsname> <hostname>...", 2)
	}

	fsName := c.Args().Get(0)
	hostnames := c.Args().Slice()[1:]

	ctx, cancel := a.commandContext()
	defer cancel()

	ostsPerOSS, err := a.topology.OSTByOSSHosts(ctx, fsName, hostnames)
	if err != nil {
		return err
	}

	for _, oss := range sortedKeys(ostsPerOSS) {
		fmt.Printf("%s - %v\n", oss, ostsPerOSS[oss])
	}

	return nil
}

func (a *application) migrateFile(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: migrate <file>", 2)
	}

	req := service.NewMigrateRequest(c.Args().Get(0))
	req.SourceIndex = c.Int("source")
	req.TargetIndex = c.Int("target")
	req.Block = c.Bool("block")
	req.DirectIO = c.Bool("direct-io")
	req.SkipMultiStriped = !c.Bool("no-skip")

	ctx, cancel := a.commandContext()
	defer cancel()

	result, err := a.migration.MigrateFile(ctx, req)
	if err != nil {
		return err
	}

	fmt.Println(result)

	return nil
}

func (a *application) checkOST(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: check <fsname> <index>", 2)
	}

	fsName := c.Args().Get(0)

	indexes, err := index.ExpandRange(c.Args().Get(1))
	if err != nil {
		return err
	}

	ctx, cancel := a.commandContext()
	defer cancel()

	for _, idx := range indexes {
		active, err := a.topology.IsActive(ctx, fsName, idx)
		if err != nil {
			return err
		}

		fmt.Printf("OST %d active: %t\n", idx, active)
	}

	return nil
}

func (a *application) fillLevels(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: df <fspath>", 2)
	}

	ctx, cancel := a.commandContext()
	defer cancel()

	fillLevels, err := a.topology.FillLevels(ctx, c.Args().Get(0))
	if err != nil {
		return err
	}

	indexes := make([]int, 0, len(fillLevels))
	for idx := range fillLevels {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	for _, idx := range indexes {
		fmt.Printf("OST %d: %d%%\n", idx, fillLevels[idx])
	}

	return nil
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = level

	return zapCfg.Build()
}

func sortedKeys(m map[string][]int) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}
