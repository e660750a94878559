package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STUDY_DATE", "")
	t.Setenv("NA_VALUES", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"", "NA", "N/A", "NULL"}, cfg.NAValues)
	assert.Equal(t, 0.8, cfg.SimilarityThreshold)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STUDY_DATE", "2021-01-31")
	t.Setenv("NA_VALUES", "NA, -, missing")
	t.Setenv("CSV_BOM", "yes")
	t.Setenv("SIMILARITY_THRESHOLD", "0.9")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	study, err := cfg.StudyTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC), study)
	assert.Equal(t, []string{"NA", "-", "missing"}, cfg.NAValues)
	assert.True(t, cfg.CSVBOM)
	assert.Equal(t, 0.9, cfg.SimilarityThreshold)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "ok", cfg: Config{StudyDate: "2020-10-20", SimilarityThreshold: 0.8}},
		{name: "bad date", cfg: Config{StudyDate: "20/10/2020", SimilarityThreshold: 0.8}, wantErr: true},
		{name: "bad threshold", cfg: Config{StudyDate: "2020-10-20", SimilarityThreshold: 1.5}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
