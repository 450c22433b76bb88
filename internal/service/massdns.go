package service

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"subbrute/internal/utils"
)

// MassdnsService wraps the external bulk resolver binary. All resolution
// parallelism lives in the child process; this side only sets parameters,
// blocks on completion and knows where the output shards land.
type MassdnsService struct {
	BinaryPath    string
	ProcessNum    int
	ConcurrentNum int
	Quiet         bool
}

func NewMassdnsService(path string, processes, concurrent int, quiet bool) *MassdnsService {
	if processes < 1 {
		processes = 1
	}
	if concurrent < 1 {
		concurrent = 2000
	}
	return &MassdnsService{
		BinaryPath:    path,
		ProcessNum:    processes,
		ConcurrentNum: concurrent,
		Quiet:         quiet,
	}
}

func (m *MassdnsService) Args(dictPath, nsPath, outPath, logPath string) []string {
	var args []string
	if m.Quiet {
		args = append(args, "--quiet")
	}
	args = append(args,
		"--status-format", "json",
		"--processes", strconv.Itoa(m.ProcessNum),
		"--socket-count", "1",
		"--hashmap-size", strconv.Itoa(m.ConcurrentNum),
		"--resolvers", nsPath,
		"--resolve-count", "50",
		"--type", "A",
		"--flush",
		"--output", "J",
		"--outfile", outPath,
		"--root",
		"--error-log", logPath,
		dictPath,
	)
	return args
}

// Run blocks until the resolver exits. A nonzero exit means the output file
// is unreliable and is surfaced as an error; the caller must not process
// results after it.
func (m *MassdnsService) Run(ctx context.Context, dictPath, nsPath, outPath, logPath string) error {
	args := m.Args(dictPath, nsPath, outPath, logPath)
	utils.Log.Info("running bulk resolver",
		utils.Field("binary", m.BinaryPath), utils.Field("dictionary", dictPath))

	start := time.Now()
	cmd := exec.CommandContext(ctx, m.BinaryPath, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("bulk resolver failed: %w: %s", err, msg)
		}
		return fmt.Errorf("bulk resolver failed: %w", err)
	}
	utils.Log.Info("bulk resolver finished", utils.Field("elapsed", time.Since(start).String()))
	return nil
}

// OutputPaths lists the result shards a run produced: the merged file for a
// single process, per-process suffixed files otherwise.
func (m *MassdnsService) OutputPaths(outPath string) []string {
	if m.ProcessNum <= 1 {
		return []string{outPath}
	}
	paths := make([]string, 0, m.ProcessNum)
	for i := 0; i < m.ProcessNum; i++ {
		paths = append(paths, outPath+strconv.Itoa(i))
	}
	return paths
}
