package badgerdb

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
)

const (
	maxRetries         = 5
	valueLogGCInterval = 30 * time.Minute
)

// createDB opens a badgerhold store in dbDir, or in memory if dbDir is empty.
func createDB(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	opts := badger.DefaultOptions(dbDir).WithLogger(logger)
	if len(dbDir) <= 0 {
		opts = opts.WithInMemory(true)
	} else {
		opts = opts.WithCompression(options.ZSTD)
	}

	store, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}

	if !opts.InMemory {
		go collectValueLog(store.Badger())
	}
	return store, nil
}

// collectValueLog periodically reclaims value log space until db is closed.
func collectValueLog(db *badger.DB) {
	ticker := time.NewTicker(valueLogGCInterval)
	defer ticker.Stop()

	for range ticker.C {
		if db.IsClosed() {
			return
		}
		if err := db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
			log.WithError(err).Warn("value log gc failed")
		}
	}
}

func parseConfig(config ...interface{}) (string, badger.Logger, error) {
	if len(config) != 2 {
		return "", nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return "", nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return "", nil, fmt.Errorf("invalid logger")
		}
	}
	return baseDir, logger, nil
}
