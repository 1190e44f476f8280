package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"retail-dashboard/internal/models"
)

var ErrDatasetNotFound = errors.New("dataset not found or expired")

// Dataset is an uploaded, cleaned transaction file. Records are never
// modified after the dataset is stored.
type Dataset struct {
	ID         string               `json:"id"`
	Filename   string               `json:"filename"`
	UploadedAt time.Time            `json:"uploaded_at"`
	Records    []models.Transaction `json:"-"`
}

type DatasetInfo struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
	Rows       int       `json:"rows"`
	Countries  []string  `json:"countries"`
	MinDate    time.Time `json:"min_date"`
	MaxDate    time.Time `json:"max_date"`
	Defaults   Params    `json:"defaults"`
}

func (d *Dataset) Info(defaults Params) DatasetInfo {
	minDate, maxDate, _ := DateBounds(d.Records)
	return DatasetInfo{
		ID:         d.ID,
		Filename:   d.Filename,
		UploadedAt: d.UploadedAt,
		Rows:       len(d.Records),
		Countries:  Countries(d.Records),
		MinDate:    minDate,
		MaxDate:    maxDate,
		Defaults:   defaults.Resolve(d.Records),
	}
}

// DatasetStore keeps uploaded datasets in memory until they expire. Each
// dashboard request reads a dataset by ID and recomputes from scratch.
type DatasetStore struct {
	cache *cache.Cache
}

func NewDatasetStore(ttl time.Duration) *DatasetStore {
	return &DatasetStore{
		cache: cache.New(ttl, 2*ttl),
	}
}

func (s *DatasetStore) Put(filename string, records []models.Transaction) *Dataset {
	ds := &Dataset{
		ID:         uuid.NewString(),
		Filename:   filename,
		UploadedAt: time.Now().UTC(),
		Records:    records,
	}
	s.cache.Set(ds.ID, ds, cache.DefaultExpiration)
	return ds
}

func (s *DatasetStore) Get(id string) (*Dataset, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrDatasetNotFound
	}

	v, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrDatasetNotFound
	}
	return v.(*Dataset), nil
}

func (s *DatasetStore) Delete(id string) {
	s.cache.Delete(id)
}

func (s *DatasetStore) Len() int {
	return s.cache.ItemCount()
}

func (s *DatasetStore) Flush() {
	s.cache.Flush()
}
