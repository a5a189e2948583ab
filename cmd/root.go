package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/upsot-pipeline/clients"
	cfg "github.com/maastricht-university/upsot-pipeline/config"
	"github.com/maastricht-university/upsot-pipeline/orchestrator"
	"github.com/maastricht-university/upsot-pipeline/output"
	"github.com/maastricht-university/upsot-pipeline/storage"
)

var (
	configPath string
	v          = cfg.NewViper()
)

var rootCmd = &cobra.Command{
	Use:           "upsot",
	Short:         "Pick up-sot highlights from recorded audio",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default config/$CONFIG_ENV/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("asr-url", "", "transcription service base URL")
	rootCmd.PersistentFlags().String("out", "", "directory for generated outputs")
	_ = v.BindPFlag("pipeline.log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("services.asr.url", rootCmd.PersistentFlags().Lookup("asr-url"))
	_ = v.BindPFlag("paths.outputs", rootCmd.PersistentFlags().Lookup("out"))

	rootCmd.AddCommand(serveCmd, processCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("upsot failed")
		os.Exit(1)
	}
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.WithField("log_level", level).Warn("unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// setup loads configuration and wires a Pipeline with its collaborators.
func setup() (*cfg.Root, *logrus.Logger, *orchestrator.Pipeline, error) {
	conf, err := cfg.Load(configPath, v)
	if err != nil {
		return nil, nil, nil, err
	}
	log := newLogger(conf.Pipeline.LogLvl)

	audio, err := storage.NewLocal(conf.Paths.Data)
	if err != nil {
		return nil, nil, nil, err
	}
	httpc := clients.NewHTTP(cfg.DurSeconds(conf.Services.ASR.Timeout))

	p := orchestrator.NewPipeline(orchestrator.Options{
		Store:           orchestrator.NewMemoryStore(),
		Audio:           audio,
		Transcriber:     clients.NewTranscriber(httpc, conf.Services.ASR.URL),
		Renderer:        output.NewGenerator(),
		Mailer:          clients.NewMailer(conf.SMTP, conf.SimulateEmail(), log),
		Log:             log,
		Defaults:        conf.Defaults,
		MaxScriptLength: conf.Script.MaxLength,
		OutputsDir:      conf.Paths.Outputs,
	})
	log.WithFields(logrus.Fields{
		"asr":       conf.Services.ASR.URL,
		"outputs":   conf.Paths.Outputs,
		"sim_email": conf.SimulateEmail(),
	}).Debug("pipeline configured")
	return conf, log, p, nil
}
