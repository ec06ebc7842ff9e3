package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/your-org/faceattend/internal/service"
	"github.com/your-org/faceattend/internal/storage"
)

// manifest lists employees to enroll. Photo paths are relative to the
// manifest file.
type manifest struct {
	Employees []manifestEntry `yaml:"employees"`
}

type manifestEntry struct {
	Name       string `yaml:"name"`
	Email      string `yaml:"email"`
	Phone      string `yaml:"phone"`
	Department string `yaml:"department"`
	Photo      string `yaml:"photo"`
}

func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Employees) == 0 {
		return nil, errors.New("manifest lists no employees")
	}

	dir := filepath.Dir(path)
	for i := range m.Employees {
		e := &m.Employees[i]
		if e.Name == "" || e.Email == "" || e.Photo == "" {
			return nil, fmt.Errorf("manifest entry %d: name, email and photo are required", i+1)
		}
		if !filepath.IsAbs(e.Photo) {
			e.Photo = filepath.Join(dir, e.Photo)
		}
	}
	return &m, nil
}

var importWorkers int

var importCmd = &cobra.Command{
	Use:   "import <manifest.yaml>",
	Short: "Enroll the employees listed in a manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if importWorkers < 1 {
			return fmt.Errorf("--workers must be at least 1, got %d", importWorkers)
		}
		ctx := cmd.Context()
		m, err := loadManifest(args[0])
		if err != nil {
			return err
		}
		if cfg.Database.Driver == "memory" {
			fmt.Fprintln(os.Stderr, "warning: database.driver is memory, enrollments will not persist")
		}

		store, err := storage.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()
		photos, err := storage.OpenPhotos(ctx, cfg.MinIO)
		if err != nil {
			return err
		}

		if err := ensureRuntime(); err != nil {
			return err
		}
		svc, err := service.Build(cfg, store, photos, nil)
		if err != nil {
			return err
		}
		defer svc.Close()

		bar := progressbar.NewOptions(len(m.Employees),
			progressbar.OptionSetDescription("Enrolling"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)

		var (
			mu       sync.Mutex
			failures []string
		)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(importWorkers)
		for _, e := range m.Employees {
			g.Go(func() error {
				defer bar.Add(1)
				err := enroll(gctx, svc, e)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					mu.Lock()
					failures = append(failures, fmt.Sprintf("%s <%s>: %v", e.Name, e.Email, err))
					mu.Unlock()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)

		fmt.Printf("enrolled %d of %d employees\n", len(m.Employees)-len(failures), len(m.Employees))
		for _, f := range failures {
			fmt.Println("  failed:", f)
		}
		if len(failures) > 0 {
			return fmt.Errorf("%d enrollments failed", len(failures))
		}
		return nil
	},
}

func enroll(ctx context.Context, svc *service.Service, e manifestEntry) error {
	data, err := os.ReadFile(e.Photo)
	if err != nil {
		return err
	}
	_, err = svc.Register(ctx, service.Registration{
		Name:       e.Name,
		Email:      e.Email,
		Phone:      e.Phone,
		Department: e.Department,
		Photo:      base64.StdEncoding.EncodeToString(data),
	})
	return err
}

func init() {
	importCmd.Flags().IntVar(&importWorkers, "workers", runtime.NumCPU(), "number of photos processed concurrently")
	rootCmd.AddCommand(importCmd)
}
