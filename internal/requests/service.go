package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/licensedesk/internal/notify"
	"github.com/angelmondragon/licensedesk/pkg/db/models"
	"github.com/angelmondragon/licensedesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/licensedesk/pkg/errors"
	"github.com/angelmondragon/licensedesk/pkg/logger"
	"github.com/angelmondragon/licensedesk/pkg/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultGrantComment  = "Granted"
	clientArtifactPrefix = "client_"
)

type requestsRepository interface {
	Create(ctx context.Context, req *models.LicenseRequest) (*models.LicenseRequest, error)
	List(ctx context.Context) ([]models.LicenseRequest, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.LicenseRequest, error)
	Mutate(ctx context.Context, id uuid.UUID, fn Mutation) (*models.LicenseRequest, error)
}

type blobStore interface {
	Put(ctx context.Context, obj storage.Object) (string, error)
	Delete(ctx context.Context, key string) error
}

type publisher interface {
	Publish(ctx context.Context, e notify.Event)
}

type operationRecorder interface {
	Observe(op string, err error, elapsed time.Duration)
}

// Service runs the license request workflow.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateInput) (*Snapshot, error)
	List(ctx context.Context, actor Actor) ([]Snapshot, error)
	Grant(ctx context.Context, actor Actor, id uuid.UUID, comment string) (*Result, error)
	Reject(ctx context.Context, actor Actor, id uuid.UUID) (*Result, error)
	AccountsCheck(ctx context.Context, actor Actor, id uuid.UUID, approved bool) (*Result, error)
	Finalize(ctx context.Context, actor Actor, id uuid.UUID, artifact *Upload) (*Result, error)
}

type service struct {
	repo    requestsRepository
	blobs   blobStore
	bus     publisher
	metrics operationRecorder
	logg    *logger.Logger
	now     func() time.Time
}

// ServiceParams groups the workflow collaborators.
type ServiceParams struct {
	Repo    requestsRepository
	Blobs   blobStore
	Bus     publisher
	Metrics operationRecorder
	Logger  *logger.Logger
	Now     func() time.Time
}

// NewService wires the workflow engine. Metrics, logger and clock are optional.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("requests repository required")
	}
	if p.Blobs == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if p.Bus == nil {
		return nil, fmt.Errorf("notification bus required")
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    p.Repo,
		blobs:   p.Blobs,
		bus:     p.Bus,
		metrics: p.Metrics,
		logg:    p.Logger,
		now:     now,
	}, nil
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateInput) (snap *Snapshot, err error) {
	defer s.observe(OpCreate, time.Now(), &err)

	if err := authorize(actor, OpCreate); err != nil {
		return nil, err
	}
	serverName := strings.TrimSpace(input.ServerName)
	if serverName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "server_name is required")
	}
	if input.Evidence == nil || input.Evidence.Body == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "screenshot is required")
	}
	if !isAllowedEvidenceType(input.Evidence.ContentType) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "screenshot must be an image or pdf").WithDetails(map[string]any{
			"content_type": input.Evidence.ContentType,
		})
	}

	key := storage.NewKey("", input.Evidence.Filename, input.Evidence.Ext)
	url, err := s.blobs.Put(ctx, storage.Object{
		Key:         key,
		ContentType: input.Evidence.ContentType,
		Size:        input.Evidence.Size,
		Body:        input.Evidence.Body,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store screenshot")
	}

	ts := s.stamp()
	row := &models.LicenseRequest{
		ServerName:     serverName,
		ScreenshotURL:  url,
		SupportComment: optionalText(input.SupportComment),
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	created, err := s.repo.Create(ctx, row)
	if err != nil {
		s.discardBlob(ctx, key)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create license request")
	}

	s.changed(ctx, OpCreate, created.ID)
	return FromModel(created), nil
}

func (s *service) List(ctx context.Context, actor Actor) (out []Snapshot, err error) {
	defer s.observe(OpList, time.Now(), &err)

	if err := authorize(actor, OpList); err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list license requests")
	}
	return fromModels(rows), nil
}

func (s *service) Grant(ctx context.Context, actor Actor, id uuid.UUID, comment string) (res *Result, err error) {
	defer s.observe(OpGrant, time.Now(), &err)

	if err := authorize(actor, OpGrant); err != nil {
		return nil, err
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		comment = defaultGrantComment
	}

	updated, err := s.mutate(ctx, id, func(*models.LicenseRequest) (map[string]any, error) {
		ts := s.stamp()
		return map[string]any{
			"license_verified":    true,
			"license_verified_at": ts,
			"license_given":       true,
			"license_given_at":    ts,
			"license_comment":     comment,
			"updated_at":          ts,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, OpGrant, id)
	return &Result{Status: enums.StatusLicenseGranted, Request: FromModel(updated)}, nil
}

func (s *service) Reject(ctx context.Context, actor Actor, id uuid.UUID) (res *Result, err error) {
	defer s.observe(OpReject, time.Now(), &err)

	if err := authorize(actor, OpReject); err != nil {
		return nil, err
	}

	updated, err := s.mutate(ctx, id, func(*models.LicenseRequest) (map[string]any, error) {
		ts := s.stamp()
		return map[string]any{
			"license_rejected":    true,
			"license_rejected_at": ts,
			"updated_at":          ts,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, OpReject, id)
	return &Result{Status: enums.StatusLicenseRejected, Request: FromModel(updated)}, nil
}

func (s *service) AccountsCheck(ctx context.Context, actor Actor, id uuid.UUID, approved bool) (res *Result, err error) {
	defer s.observe(OpAccountsCheck, time.Now(), &err)

	if err := authorize(actor, OpAccountsCheck); err != nil {
		return nil, err
	}

	updated, err := s.mutate(ctx, id, func(current *models.LicenseRequest) (map[string]any, error) {
		if !current.LicenseGiven {
			return nil, pkgerrors.New(pkgerrors.CodePrecondition, "license not granted yet").WithDetails(map[string]any{
				"license_state": enums.DeriveLicenseState(current.LicenseGiven, current.LicenseRejected),
			})
		}
		ts := s.stamp()
		return map[string]any{
			"accounts_verified":    approved,
			"accounts_verified_at": ts,
			"updated_at":           ts,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, OpAccountsCheck, id)
	return &Result{Status: enums.StatusAccountsChecked, Approved: &approved, Request: FromModel(updated)}, nil
}

func (s *service) Finalize(ctx context.Context, actor Actor, id uuid.UUID, artifact *Upload) (res *Result, err error) {
	defer s.observe(OpFinalize, time.Now(), &err)

	if err := authorize(actor, OpFinalize); err != nil {
		return nil, err
	}
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id is required")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, mapRepoError(err, "lookup license request")
	}

	var (
		key string
		url string
	)
	if artifact != nil && artifact.Body != nil {
		key = storage.NewKey(clientArtifactPrefix, artifact.Filename, artifact.Ext)
		url, err = s.blobs.Put(ctx, storage.Object{
			Key:         key,
			ContentType: artifact.ContentType,
			Size:        artifact.Size,
			Body:        artifact.Body,
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store client artifact")
		}
	}

	updated, err := s.mutate(ctx, id, func(*models.LicenseRequest) (map[string]any, error) {
		ts := s.stamp()
		updates := map[string]any{
			"sent_to_client": true,
			"updated_at":     ts,
		}
		if url != "" {
			updates["client_upload_url"] = url
		}
		return updates, nil
	})
	if err != nil {
		if key != "" {
			s.discardBlob(ctx, key)
		}
		return nil, err
	}

	s.changed(ctx, OpFinalize, id)
	return &Result{Status: enums.StatusFinalized, Request: FromModel(updated)}, nil
}

func (s *service) mutate(ctx context.Context, id uuid.UUID, fn Mutation) (*models.LicenseRequest, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id is required")
	}
	updated, err := s.repo.Mutate(ctx, id, fn)
	if err != nil {
		return nil, mapRepoError(err, "update license request")
	}
	return updated, nil
}

// changed emits the post-commit signal. The bus never reports failure to the caller.
func (s *service) changed(ctx context.Context, op Operation, id uuid.UUID) {
	if s.logg != nil {
		logCtx := s.logg.WithOperation(ctx, string(op))
		logCtx = s.logg.WithRequestRef(logCtx, id.String())
		s.logg.Info(logCtx, "license request updated")
	}
	s.bus.Publish(ctx, notify.Event{Kind: notify.KindRequestUpdate})
}

func (s *service) discardBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "object_key", key), "discard orphaned blob", err)
	}
}

func (s *service) observe(op Operation, start time.Time, errp *error) {
	if s.metrics == nil {
		return
	}
	s.metrics.Observe(string(op), *errp, time.Since(start))
}

func (s *service) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func mapRepoError(err error, action string) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "license request not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func optionalText(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func isAllowedEvidenceType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return strings.HasPrefix(ct, "image/") || ct == "application/pdf"
}
