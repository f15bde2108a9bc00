package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/unicornultrafoundation/go-u2u-distribution/claimledger"
	"github.com/unicornultrafoundation/go-u2u-distribution/distribution"
	"github.com/unicornultrafoundation/go-u2u-distribution/kvdb"
	"github.com/unicornultrafoundation/go-u2u-distribution/token"
	"github.com/unicornultrafoundation/go-u2u-distribution/utils/errlock"
	"github.com/unicornultrafoundation/go-u2u-distribution/utils/migration"
	"github.com/unicornultrafoundation/go-u2u-distribution/vesting"
)

// stack is the set of persistent components living in one data directory.
type stack struct {
	cfg    *config
	db     *kvdb.Database
	book   *token.Book
	ledger *claimledger.Ledger
	escrow *vesting.Escrow
	clock  clockwork.Clock
}

// schemaID identifies the key layout of the database.
const schemaID = "distributor-v1"

// clock is replaced by tests.
var clock = clockwork.NewRealClock()

func openStack(cfg *config) (*stack, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, err
	}
	if err := errlock.Check(cfg.DataDir); err != nil {
		return nil, err
	}
	db, err := kvdb.Open(filepath.Join(cfg.DataDir, "db"), cfg.DB)
	if err != nil {
		return nil, err
	}
	ids := migration.NewIDStore(kvdb.NewTable(db, "m"))
	switch id := ids.GetID(); id {
	case "":
		ids.SetID(schemaID)
	case schemaID:
	default:
		_ = db.Close()
		return nil, errors.Errorf("database %s has schema %q, expected %q", cfg.DataDir, id, schemaID)
	}
	book := token.NewBook(db)
	return &stack{
		cfg:    cfg,
		db:     db,
		book:   book,
		ledger: claimledger.New(cfg.Ledger, db, book, clock),
		escrow: vesting.New(cfg.Vesting, db, book, clock),
		clock:  clock,
	}, nil
}

func (s *stack) Close() {
	s.ledger.Close()
	if err := s.db.Close(); err != nil {
		s.ledger.Log.Error("Failed to close database", "err", err)
	}
}

func (s *stack) publicationsDir() string {
	return filepath.Join(s.cfg.DataDir, "publications")
}

func (s *stack) publicationPath(period uint32) string {
	return filepath.Join(s.publicationsDir(), fmt.Sprintf("%d.json", period))
}

// storePublication keeps a copy of the published commitment of period.
func (s *stack) storePublication(period uint32, com *distribution.Commitment) error {
	if err := os.MkdirAll(s.publicationsDir(), 0700); err != nil {
		return err
	}
	f, err := os.Create(s.publicationPath(period))
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = com.WriteTo(f)
	return err
}

// currentPublication loads the commitment of the current period, or nil if
// nothing was published yet.
func (s *stack) currentPublication() (*distribution.Commitment, error) {
	period := s.ledger.Period()
	if period == 0 {
		return nil, nil
	}
	com, err := readPublication(s.publicationPath(period))
	if err != nil {
		return nil, err
	}
	if root, _ := s.ledger.Root(); root != com.Root {
		return nil, errors.Errorf("stored publication of period %d does not match the ledger root %s", period, root.Hex())
	}
	return com, nil
}

// storedPeriods lists the periods with a stored publication.
func (s *stack) storedPeriods() ([]uint32, error) {
	entries, err := os.ReadDir(s.publicationsDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var periods []uint32
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".json")
		p, err := strconv.ParseUint(name, 10, 32)
		if err != nil || name == e.Name() {
			continue
		}
		periods = append(periods, uint32(p))
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i] < periods[j] })
	return periods, nil
}
