package collate

import (
	"fmt"
	"log"

	"riboviz/workflow/models"
	"riboviz/workflow/services/paths"
	"riboviz/workflow/services/process"
	"riboviz/workflow/services/sequencer"
	"riboviz/workflow/utils"
)

// Collator merges the per-sample TPM tables into one cross-sample
// table under dir_out.
type Collator struct {
	Config    *models.Config
	Planner   *paths.Planner
	Sequencer *sequencer.Sequencer
	Process   *process.Runner
	Logger    *log.Logger
}

func NewCollator(cfg *models.Config, planner *paths.Planner, seq *sequencer.Sequencer, runner *process.Runner, logger *log.Logger) *Collator {
	return &Collator{Config: cfg, Planner: planner, Sequencer: seq, Process: runner, Logger: logger}
}

// Collate merges the named samples' TPM tables. Samples that left no
// table behind, such as those skipped for empty input, are excluded;
// with nothing left to merge the collation is skipped with a log
// line, not failed.
func (c *Collator) Collate(sampleIds []string) error {
	collatable := sampleIds
	if !c.Config.DryRun {
		collatable = nil
		for _, sampleId := range sampleIds {
			tpmsFile := c.Planner.SampleOutFile(sampleId, paths.TpmsTsv)
			if utils.FileNonEmpty(tpmsFile) {
				collatable = append(collatable, sampleId)
			} else {
				c.Logger.Printf("[%s] no TPM table at %s, excluding from collation", sampleId, tpmsFile)
			}
		}
	}
	if len(collatable) == 0 {
		c.Logger.Printf("no sample produced a TPM table, skipping collation")
		return nil
	}

	st := c.Sequencer.CollateStage(collatable)
	logPath := c.Planner.GlobalStageLog(st.Name)
	c.Logger.Printf("[%s] %s", st.Name, st.CommandLine())

	result, err := c.Process.RunStage(st, logPath)
	if err != nil || result.ExitCode != 0 {
		return fmt.Errorf("%s failed with exit code %d, see %s", st.Name, result.ExitCode, logPath)
	}
	return nil
}
