package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"popgensim/internal/model"
)

const (
	configFile      = "config.json"
	diagnosticsFile = "diagnostics.csv"
	fixationsFile   = "fixations.csv"
	snapshotFile    = "snapshot.json"
)

var diagnosticsHeader = []string{
	"generation", "n", "mean_fitness", "fitness_var", "mean_genetic_value",
	"genetic_value_var", "mean_trait", "segregating", "live_gametes",
	"mutation_pool", "fixations",
}

type RunArtifacts struct {
	RunID       string
	Config      any
	Diagnostics []model.GenerationDiagnostics
	Fixations   []model.FixationRecord
	Snapshot    *model.PopulationSnapshot
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if strings.TrimSpace(artifacts.RunID) == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeDiagnosticsCSV(filepath.Join(runDir, diagnosticsFile), artifacts.Diagnostics); err != nil {
		return "", err
	}
	if err := writeFixationsCSV(filepath.Join(runDir, fixationsFile), artifacts.Fixations); err != nil {
		return "", err
	}
	if artifacts.Snapshot != nil {
		if err := writeJSON(filepath.Join(runDir, snapshotFile), artifacts.Snapshot); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, diagnosticsFile, fixationsFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	snapshotPath := filepath.Join(src, snapshotFile)
	if _, err := os.Stat(snapshotPath); err == nil {
		if err := copyFile(snapshotPath, filepath.Join(dst, snapshotFile)); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}
	return dst, nil
}

func writeDiagnosticsCSV(path string, diagnostics []model.GenerationDiagnostics) error {
	rows := make([][]string, 0, len(diagnostics))
	for _, d := range diagnostics {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(d.Generation), 10),
			strconv.Itoa(d.N),
			formatFloat(d.MeanFitness),
			formatFloat(d.FitnessVar),
			formatFloat(d.MeanGenetic),
			formatFloat(d.GeneticVar),
			formatFloat(d.MeanTrait),
			strconv.Itoa(d.Segregating),
			strconv.Itoa(d.LiveGametes),
			strconv.Itoa(d.MutationPool),
			strconv.Itoa(d.Fixations),
		})
	}
	return writeCSV(path, diagnosticsHeader, rows)
}

// ReadDiagnosticsCSV parses a diagnostics.csv written by WriteRunArtifacts.
func ReadDiagnosticsCSV(baseDir, runID string) ([]model.GenerationDiagnostics, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, diagnosticsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.GenerationDiagnostics{}, true, nil
		}
		return nil, false, err
	}
	if len(header) != len(diagnosticsHeader) {
		return nil, false, fmt.Errorf("diagnostics header has %d columns, want %d", len(header), len(diagnosticsHeader))
	}

	out := make([]model.GenerationDiagnostics, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		p := fieldParser{record: record}
		d := model.GenerationDiagnostics{
			Generation:   uint32(p.uint(0)),
			N:            p.int(1),
			MeanFitness:  p.float(2),
			FitnessVar:   p.float(3),
			MeanGenetic:  p.float(4),
			GeneticVar:   p.float(5),
			MeanTrait:    p.float(6),
			Segregating:  p.int(7),
			LiveGametes:  p.int(8),
			MutationPool: p.int(9),
			Fixations:    p.int(10),
		}
		if p.err != nil {
			return nil, false, p.err
		}
		out = append(out, d)
	}
	return out, true, nil
}

func writeFixationsCSV(path string, fixations []model.FixationRecord) error {
	rows := make([][]string, 0, len(fixations))
	for _, f := range fixations {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(f.Generation), 10),
			formatFloat(f.Pos),
			formatFloat(f.S),
			formatFloat(f.H),
			strconv.FormatUint(uint64(f.Origin), 10),
			strconv.FormatBool(f.Neutral),
		})
	}
	return writeCSV(path, []string{"generation", "pos", "s", "h", "origin", "neutral"}, rows)
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

// fieldParser keeps the first conversion error of a CSV record.
type fieldParser struct {
	record []string
	err    error
}

func (p *fieldParser) float(i int) float64 {
	v, err := strconv.ParseFloat(p.record[i], 64)
	p.keep(i, err)
	return v
}

func (p *fieldParser) int(i int) int {
	v, err := strconv.Atoi(p.record[i])
	p.keep(i, err)
	return v
}

func (p *fieldParser) uint(i int) uint64 {
	v, err := strconv.ParseUint(p.record[i], 10, 32)
	p.keep(i, err)
	return v
}

func (p *fieldParser) keep(i int, err error) {
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %s: %w", diagnosticsHeader[i], err)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
