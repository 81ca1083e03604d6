package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kelseyhightower/envconfig"

	"riboviz/workflow/models"
	"riboviz/workflow/services"
)

func main() {
	configPath := flag.String("config", "", "workflow configuration file (YAML)")
	dryRun := flag.Bool("dry-run", false, "record commands without executing them")
	flag.Parse()

	// Gather environment variables
	var cfg models.Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	if *configPath == "" {
		fmt.Println("a workflow configuration file is required (-config)")
		os.Exit(2)
	}

	w, err := models.LoadWorkflow(*configPath)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	cfg.Workflow = *w
	cfg.DryRun = *dryRun

	fmt.Printf("Using : \n"+

		"\tDebug : %t \n\n"+

		"\tCutadapt : %s \n"+
		"\tUmi Tools : %s \n"+
		"\tHisat2 : %s \n"+
		"\tHisat2 Build : %s \n"+
		"\tSamtools : %s \n"+
		"\tBedtools : %s \n"+
		"\tPython : %s \n"+
		"\tRscript : %s \n\n"+

		"\tPython Scripts Directory : %s \n"+
		"\tR Scripts Directory : %s \n\n"+

		"\tConfiguration : %s \n"+
		"\tDataset : %s \n"+
		"\tIndex Directory : %s \n"+
		"\tTmp Directory : %s \n"+
		"\tOutput Directory : %s \n"+
		"\tLogs Directory : %s \n"+
		"\tConfigured Samples : %d \n"+
		"\tMultiplexed File : %s \n"+
		"\tWorkers : %d \n"+
		"\tDry Run : %t \n",

		cfg.Debug,
		cfg.Tools.Cutadapt,
		cfg.Tools.UmiTools,
		cfg.Tools.Hisat2,
		cfg.Tools.Hisat2Build,
		cfg.Tools.Samtools,
		cfg.Tools.Bedtools,
		cfg.Tools.Python,
		cfg.Tools.Rscript,
		cfg.Scripts.PyDir, cfg.Scripts.RDir,
		*configPath,
		w.Dataset,
		w.DirIndex, w.DirTmp, w.DirOut, w.DirLogs,
		len(w.FqFiles),
		w.MultiplexFqFiles,
		w.NumWorkers,
		cfg.DryRun)
	// --

	ws, err := services.NewWorkflowService(&cfg)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := ws.Run(ctx)
	stop()
	os.Exit(code)
}
