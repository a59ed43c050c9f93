// Command qsf is the framework's command-line entry point (spec §6):
//
//	qsf [config_path]
//
// config_path defaults to the literal string "config" when omitted.
// Exit code 0 on clean shutdown, 1 on initialisation failure.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/qsf-go/qsf/internal/framework"
	"github.com/qsf-go/qsf/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := "config"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	log := logger.New(ambientLoggerConfig())

	f := framework.New(log, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("shutdown signal received, stopping services")
		f.Stop()
	}()

	code, err := f.Start(ctx, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "qsf: %v\n", err)
	}
	return code
}

// ambientLoggerConfig reads the process's own logging shell from the
// environment (QSF_LOG_*), distinct from the scripted config store the
// framework evaluates from config_path (spec §9's Global mutable state
// note: these are two different stores with two different lifetimes).
func ambientLoggerConfig() logger.Config {
	v := viper.New()
	v.SetEnvPrefix("QSF")
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_output", "stderr")
	v.SetDefault("log_filename", "")
	v.SetDefault("log_max_size", 100)
	v.SetDefault("log_max_backups", 3)
	v.SetDefault("log_max_age", 28)
	v.SetDefault("log_compress", false)

	return logger.Config{
		Level:      v.GetString("log_level"),
		Format:     v.GetString("log_format"),
		Output:     v.GetString("log_output"),
		Filename:   v.GetString("log_filename"),
		MaxSize:    v.GetInt("log_max_size"),
		MaxBackups: v.GetInt("log_max_backups"),
		MaxAge:     v.GetInt("log_max_age"),
		Compress:   v.GetBool("log_compress"),
	}
}
