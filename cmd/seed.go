package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Shivanand-hulikatti/tutormatch/internal/config"
	"github.com/Shivanand-hulikatti/tutormatch/internal/model"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// seedFile lists people to upsert, e.g.
//
//	tutors:
//	  - email: tess@example.com
//	    name: Tess
//	    grades: {COMP1010: "4.8", MATH2000: "N/A"}
//	students:
//	  - email: sam@example.com
//	    name: Sam
type seedFile struct {
	Tutors   []model.Tutor   `yaml:"tutors"`
	Students []model.Student `yaml:"students"`
}

func newSeedCmd(cfg *config.Config) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert tutors and students from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Store.Driver == config.DriverMemory {
				return fmt.Errorf("seeding the memory store has no effect; use serve --seed instead")
			}
			st, err := openStores(cmd.Context(), cfg.Store, true)
			if err != nil {
				return err
			}
			defer st.close()
			return seed(cmd.Context(), st.people, file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file of tutors and students")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func loadSeedFile(path string) (*seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var sf seedFile
	if err := yaml.Unmarshal(raw, &sf); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, t := range sf.Tutors {
		if model.NormalizeEmail(t.Email) == "" {
			return nil, fmt.Errorf("seed file: tutor %d has no email", i)
		}
	}
	for i, s := range sf.Students {
		if model.NormalizeEmail(s.Email) == "" {
			return nil, fmt.Errorf("seed file: student %d has no email", i)
		}
	}
	return &sf, nil
}

func seed(ctx context.Context, people personStore, path string) error {
	sf, err := loadSeedFile(path)
	if err != nil {
		return err
	}
	for _, t := range sf.Tutors {
		if err := people.UpsertTutor(ctx, t); err != nil {
			return err
		}
	}
	for _, s := range sf.Students {
		if err := people.UpsertStudent(ctx, s); err != nil {
			return err
		}
	}
	log.WithFields(log.Fields{
		"tutors":   len(sf.Tutors),
		"students": len(sf.Students),
	}).Info("seed loaded")
	return nil
}
