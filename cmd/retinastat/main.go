// retinastat summarizes an imaging distribution: how many samples each
// device, modality and split contributes, and how the configured label is
// distributed. Optionally renders the diabetes-status distribution as a bar
// chart.
//
// Usage:
//
//	retinastat -config dataset.yaml [-plot labels.png]
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/oculoml/retinaset/clinical"
	"github.com/oculoml/retinaset/config"
	"github.com/oculoml/retinaset/manifest"
)

func main() {
	configPath := flag.String("config", "", "path to dataset YAML config")
	plotPath := flag.String("plot", "", "optional output PNG for the diabetes-status distribution")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if *configPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(*configPath, *plotPath); err != nil {
		log.Fatal().Err(err).Msg("retinastat failed")
	}
}

func run(configPath, plotPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	m, err := manifest.Scan(cfg.Root)
	if err != nil {
		return err
	}
	filter, err := cfg.ManifestFilter()
	if err != nil {
		return err
	}
	entries := m.Select(filter)
	log.Info().Int("enumerated", m.Len()).Int("selected", len(entries)).Msg("scan complete")

	tables, err := clinical.LoadTables(cfg.Root)
	if err != nil {
		return err
	}

	byDevice := make(map[manifest.Device]int)
	byModality := make(map[manifest.Modality]int)
	bySplit := make(map[manifest.Split]int)
	classCounts := make([]int, 4)
	ratios := cfg.Ratios()

	for _, e := range entries {
		byDevice[e.Key.Device]++
		byModality[e.Key.Modality]++
		bySplit[ratios.Assign(e.Key.Patient)]++

		p, err := tables.Participant(e.Key.Patient)
		if err != nil {
			return err
		}
		class, err := clinical.DiabetesClass(p.StudyGroup)
		if err != nil {
			return fmt.Errorf("participant %s: %w", e.Key.Patient, err)
		}
		classCounts[class]++
	}

	printCounts("device", byDevice)
	printCounts("modality", byModality)
	printCounts("split", bySplit)

	classNames := []string{"healthy", "prediabetes", "type2_oral", "type2_insulin"}
	fmt.Println("diabetes_status:")
	for i, name := range classNames {
		fmt.Printf("  %-16s %d\n", name, classCounts[i])
	}

	if plotPath != "" {
		if err := saveClassChart(plotPath, classNames, classCounts); err != nil {
			return err
		}
		log.Info().Str("path", plotPath).Msg("wrote label distribution chart")
	}
	return nil
}

func printCounts[K ~string](title string, counts map[K]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	fmt.Printf("%s:\n", title)
	for _, k := range keys {
		fmt.Printf("  %-16s %d\n", k, counts[K(k)])
	}
}

func saveClassChart(path string, names []string, counts []int) error {
	p := plot.New()
	p.Title.Text = "Diabetes status distribution"
	p.Y.Label.Text = "samples"

	values := make(plotter.Values, len(counts))
	for i, c := range counts {
		values[i] = float64(c)
	}
	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return fmt.Errorf("failed to build bar chart: %w", err)
	}
	p.Add(bars)
	p.NominalX(names...)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save chart: %w", err)
	}
	return nil
}
