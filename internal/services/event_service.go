package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"predictsol/internal/blockchain"
	"predictsol/internal/custody"
	"predictsol/internal/lock"
	"predictsol/internal/models"
	"predictsol/internal/oracle"
	"predictsol/internal/repository"
	"predictsol/internal/settlement"
)

// Params are the deployment-level settlement parameters.
type Params struct {
	RedemptionFeeBps      uint16
	ConsensusThresholdBps uint16
	SweepDelay            time.Duration
	MintRentLamports      uint64
	HouseWallet           string
}

// Option customizes an EventService
type Option func(*EventService)

// WithClock replaces the wall clock used for every time window check.
func WithClock(now func() time.Time) Option {
	return func(s *EventService) {
		s.now = now
	}
}

// EventService is the settlement engine. Each exported operation runs under
// the event's lock and inside one database transaction, so a rejected call
// leaves records, balances and token supplies untouched.
type EventService struct {
	db     *gorm.DB
	repo   *repository.Repository
	vaults *custody.Vaults
	issuer *custody.Issuer
	oracle oracle.Oracle
	addrs  *blockchain.ProgramAddresses
	locker lock.Locker
	params Params
	now    func() time.Time
	logger *zap.Logger
}

func NewEventService(
	db *gorm.DB,
	repo *repository.Repository,
	vaults *custody.Vaults,
	issuer *custody.Issuer,
	orc oracle.Oracle,
	addrs *blockchain.ProgramAddresses,
	locker lock.Locker,
	params Params,
	logger *zap.Logger,
	opts ...Option,
) *EventService {
	if params.ConsensusThresholdBps == 0 {
		params.ConsensusThresholdBps = settlement.DefaultConsensusThresholdBps
	}
	s := &EventService{
		db:     db,
		repo:   repo,
		vaults: vaults,
		issuer: issuer,
		oracle: orc,
		addrs:  addrs,
		locker: locker,
		params: params,
		now:    time.Now,
		logger: logger.Named("engine"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// txScope holds the collaborators bound to one transaction
type txScope struct {
	repo   *repository.Repository
	vaults *custody.Vaults
	issuer *custody.Issuer
}

func (s *EventService) inTx(ctx context.Context, fn func(sc *txScope) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txScope{
			repo:   s.repo.WithTx(tx),
			vaults: s.vaults.WithTx(tx),
			issuer: s.issuer.WithTx(tx),
		})
	})
}

// withEvent serializes on the event, loads it inside a transaction and hands
// it to fn together with the event's authority.
func (s *EventService) withEvent(
	ctx context.Context,
	address string,
	fn func(sc *txScope, event *models.Event, auth custody.Authority) error,
) (*models.Event, error) {
	unlock, err := s.locker.Lock(ctx, eventLockKey(address))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var event *models.Event
	err = s.inTx(ctx, func(sc *txScope) error {
		ev, err := sc.repo.GetEvent(ctx, address)
		if err != nil {
			return err
		}
		auth, err := custody.NewAuthority(s.addrs, ev.Address)
		if err != nil {
			return err
		}
		if err := fn(sc, ev, auth); err != nil {
			return err
		}
		event = ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

func eventLockKey(address string) string {
	return "event:" + address
}

func counterLockKey(creator string) string {
	return "counter:" + creator
}

func parseWallet(address string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, settlement.ErrInvalidAddress
	}
	return pk, nil
}

// AllocateEventCounter initializes the creator's event counter. Calling it
// again returns the existing counter.
func (s *EventService) AllocateEventCounter(ctx context.Context, creator string) (*models.EventCounter, error) {
	creatorKey, err := parseWallet(creator)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, counterLockKey(creator))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var counter *models.EventCounter
	err = s.inTx(ctx, func(sc *txScope) error {
		counter, err = s.loadOrCreateCounter(ctx, sc, creatorKey)
		return err
	})
	if err != nil {
		return nil, err
	}
	return counter, nil
}

func (s *EventService) loadOrCreateCounter(ctx context.Context, sc *txScope, creator solana.PublicKey) (*models.EventCounter, error) {
	counter, err := sc.repo.GetCounter(ctx, creator.String())
	if err == nil {
		return counter, nil
	}
	if !errors.Is(err, settlement.ErrCounterNotFound) {
		return nil, err
	}

	address, err := s.addrs.EventCounter(creator)
	if err != nil {
		return nil, err
	}
	counter = &models.EventCounter{
		Address: address.String(),
		Creator: creator.String(),
	}
	if err := sc.repo.CreateCounter(ctx, counter); err != nil {
		return nil, fmt.Errorf("failed to create event counter: %w", err)
	}
	s.logger.Info("event counter initialized", zap.String("creator", counter.Creator), zap.String("counter", counter.Address))
	return counter, nil
}

// GetCounter returns the event counter of creator
func (s *EventService) GetCounter(ctx context.Context, creator string) (*models.EventCounter, error) {
	return s.repo.GetCounter(ctx, creator)
}

// CreateEvent validates the schedule, takes the creator's next event id and
// records a new unresolved event.
func (s *EventService) CreateEvent(ctx context.Context, creator string, req *models.CreateEventRequest) (*models.Event, error) {
	creatorKey, err := parseWallet(creator)
	if err != nil {
		return nil, err
	}
	now := s.now().Unix()
	if err := settlement.ValidateSchedule(req.Title, req.Category, now, req.BetEndTime, req.CommitEndTime, req.RevealEndTime); err != nil {
		return nil, err
	}

	threshold := req.ConsensusThresholdBps
	if threshold == 0 {
		threshold = s.params.ConsensusThresholdBps
	}
	if uint64(threshold) > settlement.BpsDenominator {
		return nil, settlement.ErrInvalidThreshold
	}
	if req.TruthQuestion != "" {
		if _, err := parseWallet(req.TruthQuestion); err != nil {
			return nil, err
		}
		// The keeper only lists linked events, so the link must resolve.
		if _, err := s.oracle.Question(ctx, req.TruthQuestion); err != nil {
			return nil, err
		}
	}

	unlock, err := s.locker.Lock(ctx, counterLockKey(creator))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var event *models.Event
	err = s.inTx(ctx, func(sc *txScope) error {
		counter, err := s.loadOrCreateCounter(ctx, sc, creatorKey)
		if err != nil {
			return err
		}
		id := counter.Count

		address, err := s.addrs.Event(creatorKey, id)
		if err != nil {
			return err
		}
		if err := sc.repo.IncrementCounter(ctx, counter); err != nil {
			return err
		}

		event = &models.Event{
			Address:               address.String(),
			Creator:               creator,
			EventID:               id,
			Title:                 req.Title,
			Category:              models.Category(req.Category),
			BetEndTime:            req.BetEndTime,
			CommitEndTime:         req.CommitEndTime,
			RevealEndTime:         req.RevealEndTime,
			CreatedAtUnix:         now,
			TruthQuestion:         req.TruthQuestion,
			ResultStatus:          models.ResultStatusPending,
			ConsensusThresholdBps: threshold,
		}
		if err := sc.repo.CreateEvent(ctx, event); err != nil {
			return fmt.Errorf("failed to create event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("event created",
		zap.String("event", event.Address),
		zap.String("creator", creator),
		zap.Uint64("event_id", event.EventID),
		zap.Int64("bet_end_time", event.BetEndTime))
	return event, nil
}

// BootstrapEventVaultAndMints funds the collateral vault up to the keep-alive
// reserve, creates both claim-token mints and records their addresses. The
// creator pays. Repeating it is a no-op.
func (s *EventService) BootstrapEventVaultAndMints(ctx context.Context, caller, address string) (*models.Event, error) {
	return s.withEvent(ctx, address, func(sc *txScope, event *models.Event, auth custody.Authority) error {
		if caller != event.Creator {
			return settlement.ErrUnauthorized
		}
		if event.Bootstrapped() {
			if event.CollateralVault != auth.Vault() ||
				event.TrueMint != auth.Mint(models.SideTrue) ||
				event.FalseMint != auth.Mint(models.SideFalse) {
				return settlement.ErrAlreadyBootstrapped
			}
		}

		m := custody.Movement{Event: event.Address, Kind: models.TxKindBootstrap}
		funded, err := sc.vaults.EnsureFunded(ctx, caller, auth.Vault(), sc.vaults.Reserve(), m)
		if err != nil {
			return err
		}
		for _, side := range []models.Side{models.SideTrue, models.SideFalse} {
			if _, err := sc.issuer.EnsureMint(ctx, auth, side); err != nil {
				return err
			}
			rent, err := sc.vaults.EnsureFunded(ctx, caller, auth.Mint(side), s.params.MintRentLamports, m)
			if err != nil {
				return err
			}
			funded += rent
		}

		if event.Bootstrapped() {
			return nil
		}
		event.CollateralVault = auth.Vault()
		event.TrueMint = auth.Mint(models.SideTrue)
		event.FalseMint = auth.Mint(models.SideFalse)
		if err := sc.repo.UpdateEvent(ctx, event); err != nil {
			return err
		}

		s.logger.Info("event bootstrapped",
			zap.String("event", event.Address),
			zap.String("caller", caller),
			zap.String("vault", event.CollateralVault),
			zap.Uint64("funded_lamports", funded))
		return nil
	})
}

// GetEvent returns the API view of an event
func (s *EventService) GetEvent(ctx context.Context, address string) (*models.EventResponse, error) {
	event, err := s.repo.GetEvent(ctx, address)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, event)
}

// ListEvents lists events matching filter
func (s *EventService) ListEvents(ctx context.Context, filter repository.EventFilter) ([]*models.EventResponse, int64, error) {
	events, total, err := s.repo.ListEvents(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}

	out := make([]*models.EventResponse, 0, len(events))
	for i := range events {
		resp, err := s.view(ctx, &events[i])
		if err != nil {
			return nil, 0, err
		}
		out = append(out, resp)
	}
	return out, total, nil
}

// ListTransactions lists the value movements of an event
func (s *EventService) ListTransactions(ctx context.Context, address string, limit, offset int) ([]models.SettlementTransaction, error) {
	return s.repo.ListTransactions(ctx, address, limit, offset)
}

// DueForFinalize lists oracle-linked, unresolved events whose betting window
// has closed, starting after c
func (s *EventService) DueForFinalize(ctx context.Context, c repository.Cursor, limit int) ([]models.Event, error) {
	return s.repo.ListFinalizable(ctx, s.now().Unix(), c, limit)
}

// DueForSweep lists resolved, unswept events whose sweep delay has elapsed,
// starting after c
func (s *EventService) DueForSweep(ctx context.Context, c repository.Cursor, limit int) ([]models.Event, error) {
	cutoff := s.now().Add(-s.params.SweepDelay).Unix()
	return s.repo.ListSweepable(ctx, cutoff, c, limit)
}

func (s *EventService) view(ctx context.Context, event *models.Event) (*models.EventResponse, error) {
	var balance uint64
	if event.CollateralVault != "" {
		b, err := s.vaults.Balance(ctx, event.CollateralVault)
		if err != nil {
			return nil, err
		}
		balance = b
	}
	return &models.EventResponse{
		Event:              *event,
		TotalCollateralSOL: blockchain.LamportsToSOL(event.TotalCollateralLamports).String(),
		VaultBalance:       balance,
		Phase:              s.Phase(event),
	}, nil
}

// Phase names the lifecycle stage of event at the current time.
func (s *EventService) Phase(event *models.Event) string {
	now := s.now().Unix()
	switch {
	case event.UnclaimedSwept:
		return "swept"
	case event.Resolved:
		return "resolved"
	case !event.Bootstrapped():
		return "created"
	case now < event.BetEndTime:
		return "active"
	default:
		return "awaiting_resolution"
	}
}

// sweepWindowOpen reports whether the sweep delay after resolution has elapsed
func (s *EventService) sweepWindowOpen(event *models.Event, now int64) bool {
	delay := int64(s.params.SweepDelay / time.Second)
	return event.ResolvedAt > 0 && now >= event.ResolvedAt+delay
}
