package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sheikh-saqib/deskbank/internal/auth"
	"github.com/sheikh-saqib/deskbank/internal/backup"
	"github.com/sheikh-saqib/deskbank/internal/config"
	"github.com/sheikh-saqib/deskbank/internal/events/kafka"
	"github.com/sheikh-saqib/deskbank/internal/events/logpub"
	interfaces "github.com/sheikh-saqib/deskbank/internal/interfaces"
	"github.com/sheikh-saqib/deskbank/internal/ledger"
	"github.com/sheikh-saqib/deskbank/internal/service"
	"github.com/sheikh-saqib/deskbank/internal/storage"
	"github.com/sheikh-saqib/deskbank/internal/storage/file"
)

// ErrDetached is returned once a failed restore could not be rolled back.
// The data directory is left as it is for inspection.
var ErrDetached = errors.New("data directory out of sync, not saving")

// App holds the repositories and services built from a Config.
type App struct {
	Config   config.Config
	Users    *storage.UserRepository
	Accounts *storage.AccountRepository
	Ledger   *ledger.Ledger
	Account  *service.AccountService
	User     *service.UserService
	Auth     *auth.Service
	Backups  *backup.Manager

	publisher interfaces.EventPublisher
	// detached is set when the data directory no longer matches memory.
	detached bool
}

// New loads both repositories from disk and wires the services. A corrupt
// snapshot stops startup unless AllowEmptyOnCorrupt is set, in which case
// the data directory is archived first and the repository starts empty.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	backups, err := backup.NewManager(cfg.BackupDir, config.Version)
	if err != nil {
		return nil, err
	}

	users := storage.NewUserRepository(file.NewSnapshotStore(cfg.UsersFile))
	accounts := storage.NewAccountRepository(file.NewSnapshotStore(cfg.AccountsFile))

	archived := false
	for _, repo := range []interface{ Load(context.Context) error }{users, accounts} {
		err := repo.Load(ctx)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrCorruptSnapshot) || !cfg.AllowEmptyOnCorrupt {
			return nil, err
		}
		if !archived {
			saved, berr := backups.Create(cfg.DataDir, "corrupt_snapshot_"+time.Now().Format("20060102_150405"))
			if berr != nil {
				return nil, fmt.Errorf("%w (archiving data failed: %v)", err, berr)
			}
			log.Printf("app: %v; data archived to %s, starting empty", err, saved)
			archived = true
		}
	}

	var publisher interfaces.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = kafka.NewPublisher(cfg.KafkaBrokers)
	} else {
		publisher = logpub.New(nil)
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTTL)

	return &App{
		Config:   cfg,
		Users:    users,
		Accounts: accounts,
		Ledger: ledger.NewLedger(accounts, publisher, cfg,
			ledger.WithTopic(cfg.KafkaTopic),
			ledger.WithDailyLimitEnforcement(cfg.EnforceDailyLimit)),
		Account:   service.NewAccountService(accounts, users, cfg),
		User:      service.NewUserService(users, accounts, cfg.PasswordMinLength),
		Auth:      auth.NewService(users, tokens),
		Backups:   backups,
		publisher: publisher,
	}, nil
}

// Close flushes both snapshots, unless the App is detached, and releases the
// event publisher.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.detached {
		errs = append(errs, ErrDetached)
	} else {
		if err := a.Users.Save(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := a.Accounts.Save(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if c, ok := a.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Backup archives the data directory and prunes old archives.
func (a *App) Backup(ctx context.Context, name string) (string, error) {
	if a.detached {
		return "", ErrDetached
	}
	if err := a.Users.Save(ctx); err != nil {
		return "", err
	}
	if err := a.Accounts.Save(ctx); err != nil {
		return "", err
	}
	path, err := a.Backups.Create(a.Config.DataDir, name)
	if err != nil {
		return "", err
	}
	if _, err := a.Backups.Cleanup(a.Config.MaxBackups); err != nil {
		log.Printf("app: backup cleanup: %v", err)
	}
	return path, nil
}

// Restore replaces the data directory with an archive and reloads both
// repositories. The restored snapshots are checked before the live
// repositories see them. When a check fails the previous data is put back
// and the error is returned. If even that fails, the App stops saving so
// Close can't overwrite the directory with state that no longer matches it.
func (a *App) Restore(ctx context.Context, backupFile string) error {
	saved, err := a.Backups.Restore(backupFile, a.Config.DataDir)
	if err == nil {
		err = a.checkSnapshots(ctx)
		if err == nil {
			return errors.Join(a.Users.Load(ctx), a.Accounts.Load(ctx))
		}
	}
	if saved == "" {
		return err
	}

	log.Printf("app: restore of %s failed: %v; putting back %s", backupFile, err, saved)
	if _, rerr := a.Backups.Restore(saved, a.Config.DataDir); rerr != nil {
		a.detached = true
		return fmt.Errorf("%w (rollback from %s failed: %v)", err, saved, rerr)
	}
	return err
}

// checkSnapshots decodes the files on disk without touching the live repositories.
func (a *App) checkSnapshots(ctx context.Context) error {
	return errors.Join(
		storage.NewUserRepository(file.NewSnapshotStore(a.Config.UsersFile)).Load(ctx),
		storage.NewAccountRepository(file.NewSnapshotStore(a.Config.AccountsFile)).Load(ctx),
	)
}
