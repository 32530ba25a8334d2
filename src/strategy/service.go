// Package strategy manages strategy records and their run state.
package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"signalrelay/src/model"
	"signalrelay/src/repository"
	"signalrelay/src/stream"
	"signalrelay/src/venue"
)

var (
	ErrAlreadyRunning = errors.New("strategy: already running")
	ErrAlreadyStopped = errors.New("strategy: already stopped")
)

type Store interface {
	Create(ctx context.Context, s *model.Strategy) error
	Update(ctx context.Context, s *model.Strategy) error
	Delete(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (*model.Strategy, error)
	FindByName(ctx context.Context, name string) (*model.Strategy, error)
	List(ctx context.Context) ([]model.Strategy, error)
	ListActive(ctx context.Context) ([]model.Strategy, error)
}

type TradeLister interface {
	ListByStrategy(ctx context.Context, strategyID uint, limit int) ([]model.Trade, error)
}

// Lifecycle starts and stops stream clients; *registry.Registry implements it.
type Lifecycle interface {
	Activate(ctx context.Context, s *model.Strategy) error
	Deactivate(ctx context.Context, id uint) error
	Replace(s *model.Strategy, commit func() error) (bool, error)
	Forget(id uint)
	StopAll()
}

// Sealer encrypts venue passwords at rest; *security.Box implements it.
type Sealer interface {
	EncryptString(plain string) (string, error)
	DecryptString(value string) (string, error)
}

type Service struct {
	log       *logrus.Entry
	store     Store
	trades    TradeLister
	lifecycle Lifecycle
	sealer    Sealer
	cfg       Config
}

func NewService(log *logrus.Entry, store Store, trades TradeLister, lifecycle Lifecycle, sealer Sealer, cfg Config) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		log:       log.WithField("component", "strategy_service"),
		store:     store,
		trades:    trades,
		lifecycle: lifecycle,
		sealer:    sealer,
		cfg:       cfg,
	}
}

func (s *Service) Get(ctx context.Context, id uint) (*model.Strategy, error) {
	return s.store.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]model.Strategy, error) {
	return s.store.List(ctx)
}

// Create validates in, applies default risk and commission and stores an Inactive strategy.
func (s *Service) Create(ctx context.Context, in Input) (*model.Strategy, error) {
	in.normalize()

	risk := s.cfg.DefaultRiskPercentage
	if in.RiskPercentage != nil {
		risk = *in.RiskPercentage
	}
	commission := s.cfg.DefaultCommission
	if in.Commission != nil {
		commission = *in.Commission
	}

	if err := validate(in.Name, risk, commission, in.AccountID, in.Server, in.Directory, in.WebsocketURL, in.Password != ""); err != nil {
		return nil, err
	}
	if _, err := s.store.FindByName(ctx, in.Name); err == nil {
		return nil, repository.ErrStrategyNameConflict
	} else if !errors.Is(err, repository.ErrStrategyNotFound) {
		return nil, err
	}

	sealed, err := s.sealer.EncryptString(in.Password)
	if err != nil {
		return nil, fmt.Errorf("encrypt venue password: %w", err)
	}

	strat := &model.Strategy{
		Name:           in.Name,
		RiskPercentage: risk,
		AccountID:      in.AccountID,
		Password:       sealed,
		Server:         in.Server,
		Directory:      in.Directory,
		WebsocketURL:   in.WebsocketURL,
		Commission:     commission,
		Status:         model.StrategyStatusInactive,
	}
	if err := s.store.Create(ctx, strat); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"strategy_id": strat.ID, "strategy": strat.Name}).Info("Strategy created")
	return strat, nil
}

// Update edits a strategy. A running client is replaced by one built from the edit.
func (s *Service) Update(ctx context.Context, id uint, in Input) (*model.Strategy, error) {
	in.normalize()

	strat, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.RiskPercentage != nil {
		strat.RiskPercentage = *in.RiskPercentage
	}
	if in.Commission != nil {
		strat.Commission = *in.Commission
	}
	strat.Name = in.Name
	strat.AccountID = in.AccountID
	strat.Server = in.Server
	strat.Directory = in.Directory
	strat.WebsocketURL = in.WebsocketURL

	if err := validate(strat.Name, strat.RiskPercentage, strat.Commission, strat.AccountID, strat.Server, strat.Directory, strat.WebsocketURL, in.Password != "" || strat.Password != ""); err != nil {
		return nil, err
	}

	if in.Password != "" {
		sealed, err := s.sealer.EncryptString(in.Password)
		if err != nil {
			return nil, fmt.Errorf("encrypt venue password: %w", err)
		}
		strat.Password = sealed
	}

	log := s.log.WithFields(logrus.Fields{"strategy_id": strat.ID, "strategy": strat.Name})

	// A running client is stopped before the edit is stored and rebuilt after it.
	restarted, err := s.lifecycle.Replace(strat, func() error {
		return s.store.Update(ctx, strat)
	})
	if err != nil {
		log.WithError(err).Warn("Failed to update strategy")
		return nil, err
	}
	log.WithField("restarted", restarted).Info("Strategy updated")

	return s.store.FindByID(ctx, id)
}

// Delete stops the strategy's client and removes it together with its trades.
func (s *Service) Delete(ctx context.Context, id uint) error {
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return err
	}

	s.lifecycle.Forget(id)
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.log.WithField("strategy_id", id).Info("Strategy deleted")
	return nil
}

func (s *Service) Run(ctx context.Context, id uint) (*model.Strategy, error) {
	strat, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if strat.IsActive() {
		return strat, ErrAlreadyRunning
	}

	if err := s.lifecycle.Activate(ctx, strat); err != nil {
		return nil, err
	}
	strat.Status = model.StrategyStatusActive

	s.log.WithFields(logrus.Fields{"strategy_id": strat.ID, "strategy": strat.Name}).Info("Strategy started")
	return strat, nil
}

func (s *Service) Stop(ctx context.Context, id uint) (*model.Strategy, error) {
	strat, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strat.IsActive() {
		return strat, ErrAlreadyStopped
	}

	if err := s.lifecycle.Deactivate(ctx, id); err != nil {
		return nil, err
	}
	strat.Status = model.StrategyStatusInactive

	s.log.WithFields(logrus.Fields{"strategy_id": strat.ID, "strategy": strat.Name}).Info("Strategy stopped")
	return strat, nil
}

// Bootstrap starts a client for every strategy stored as Active and reports how many started.
func (s *Service) Bootstrap(ctx context.Context) (int, error) {
	active, err := s.store.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active strategies: %w", err)
	}

	started := 0
	for i := range active {
		strat := &active[i]
		if err := s.lifecycle.Activate(ctx, strat); err != nil {
			s.log.WithError(err).WithField("strategy_id", strat.ID).Error("Failed to start strategy on boot")
			continue
		}
		started++
	}

	s.log.WithFields(logrus.Fields{"active": len(active), "started": started}).Info("Active strategies resumed")
	return started, nil
}

// Shutdown stops every client and leaves stored statuses untouched.
func (s *Service) Shutdown() {
	s.lifecycle.StopAll()
}

// Trades lists a strategy's trades, oldest first.
func (s *Service) Trades(ctx context.Context, id uint, limit int) ([]model.Trade, error) {
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.trades.ListByStrategy(ctx, id, limit)
}

// VenueCredentials returns a stream.CredentialsFunc that decrypts the stored password.
func VenueCredentials(sealer Sealer) stream.CredentialsFunc {
	return func(strat *model.Strategy) (venue.Credentials, error) {
		password, err := sealer.DecryptString(strat.Password)
		if err != nil {
			return venue.Credentials{}, fmt.Errorf("decrypt password of strategy %d: %w", strat.ID, err)
		}
		return venue.Credentials{
			AccountID: strat.AccountID,
			Password:  password,
			Server:    strat.Server,
			Directory: strat.Directory,
		}, nil
	}
}
