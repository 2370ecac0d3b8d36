package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wichananm65/perfume-shop-backend/internal/catalog"
	"github.com/wichananm65/perfume-shop-backend/internal/category"
)

type seedFile struct {
	Categories []seedCategory `yaml:"categories"`
	Items      []seedItem     `yaml:"items"`
}

type seedCategory struct {
	Name  string `yaml:"name"`
	Image string `yaml:"image"`
}

type seedItem struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Price       string   `yaml:"price"`
	Images      []string `yaml:"images"`
	Category    string   `yaml:"category"`
	Brand       string   `yaml:"brand"`
	Stock       int      `yaml:"stock"`
}

type seedReport struct {
	Categories int `json:"categories"`
	Created    int `json:"created"`
	Updated    int `json:"updated"`
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create or update categories and items from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			seed, err := loadSeed(f)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}

			ctx := cmd.Context()
			db, err := opts.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			cats := category.NewService(category.NewPostgresRepository(db))
			items := catalog.NewService(catalog.NewPostgresRepository(db))
			items.UseCategories(cats)

			report, err := applySeed(ctx, cats, items, seed)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), opts.Format, report)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "catalog.yaml", "seed file")
	return cmd
}

func loadSeed(r io.Reader) (seedFile, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return seedFile{}, err
	}
	return f, nil
}

// applySeed upserts categories first so item category checks pass. Items
// with an existing id are updated in place.
func applySeed(ctx context.Context, cats *category.Service, items *catalog.Service, f seedFile) (seedReport, error) {
	var report seedReport
	for _, c := range f.Categories {
		var img *string
		if c.Image != "" {
			img = &c.Image
		}
		if _, err := cats.Save(ctx, c.Name, img); err != nil {
			return report, fmt.Errorf("category %q: %w", c.Name, err)
		}
		report.Categories++
	}

	for i, s := range f.Items {
		price, err := decimal.NewFromString(s.Price)
		if err != nil {
			return report, fmt.Errorf("item %d (%s): price %q: %w", i+1, s.Name, s.Price, err)
		}
		it := catalog.Item{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Price:       price,
			Images:      s.Images,
			Category:    s.Category,
			Brand:       s.Brand,
			Stock:       s.Stock,
		}

		if s.ID != "" {
			if _, err := items.GetByID(ctx, s.ID); err == nil {
				if _, err := items.Update(ctx, s.ID, it); err != nil {
					return report, seedItemError(i, s, err)
				}
				report.Updated++
				continue
			} else if !errors.Is(err, catalog.ErrNotFound) {
				return report, err
			}
		}
		if _, err := items.Create(ctx, it); err != nil {
			return report, seedItemError(i, s, err)
		}
		report.Created++
	}
	return report, nil
}

func seedItemError(i int, s seedItem, err error) error {
	return fmt.Errorf("item %d (%s): %w", i+1, s.Name, err)
}

func writeReport(w io.Writer, format string, report seedReport) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(report)
	}
	_, err := fmt.Fprintf(w, "categories: %d, items created: %d, items updated: %d\n",
		report.Categories, report.Created, report.Updated)
	return err
}
