package supabase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"reimagine-studio/internal/models"
)

const (
	ImageTypeOriginal  = "original"
	ImageTypeGenerated = "generated"

	originalStyleName = "Original"
)

// Transaction steps reported by TransactionError.
const (
	StepBegin         = "begin"
	StepUpsertUser    = "upsert_user"
	StepUpsertProject = "upsert_project"
	StepReplaceImages = "replace_images"
	StepReplaceChats  = "replace_chats"
	StepBeforeCommit  = "before_commit"
	StepCommit        = "commit"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TransactionError reports the step at which a project save was rolled back.
type TransactionError struct {
	Step string
	Err  error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("failed to save project at %s: %v", e.Step, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// ReadQueryError is logged when one project of a listing cannot be read.
type ReadQueryError struct {
	ProjectID string
	Err       error
}

func (e *ReadQueryError) Error() string {
	return fmt.Sprintf("failed to read project %s: %v", e.ProjectID, e.Err)
}

func (e *ReadQueryError) Unwrap() error { return e.Err }

type UserRow struct {
	ID    string
	Email string
}

type ProjectRow struct {
	ID           string
	UserID       string
	Name         string
	Mode         string
	CreatedAt    int64
	UpdatedAt    int64
	ImageCount   int
	UserPrompt   string
	ReferenceURL string
}

type ImageRow struct {
	ID        string
	ProjectID string
	URL       sql.NullString
	Prompt    string
	StyleName string
	Type      string
	CreatedAt int64
}

type ChatRow struct {
	ID        string
	ProjectID string
	Role      string
	Content   string
	Timestamp int64
}

// DatabaseClient is the relational metadata store for users, projects,
// images and chat messages.
type DatabaseClient struct {
	db           *sql.DB
	logger       *zap.Logger
	beforeCommit func(ctx context.Context, tx *sql.Tx) error
}

type Option func(*DatabaseClient)

// WithBeforeCommit runs fn inside the save transaction after every statement
// and before COMMIT. A non-nil error rolls the save back.
func WithBeforeCommit(fn func(ctx context.Context, tx *sql.Tx) error) Option {
	return func(d *DatabaseClient) { d.beforeCommit = fn }
}

func NewDatabaseClient(db *sql.DB, logger *zap.Logger, opts ...Option) *DatabaseClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &DatabaseClient{db: db, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SaveProject replace-syncs a storage-shaped project in one transaction:
// user, project, images, chats. Every image must already be a durable URL.
func (d *DatabaseClient) SaveProject(ctx context.Context, owner models.Owner, p models.Project) (err error) {
	projectRow, err := ProjectRowFor(owner.ID, p)
	if err != nil {
		return &TransactionError{Step: StepUpsertProject, Err: err}
	}
	imageRows, err := ImageRowsFor(p)
	if err != nil {
		return &TransactionError{Step: StepReplaceImages, Err: err}
	}
	chatRows := ChatRowsFor(p)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return &TransactionError{Step: StepBegin, Err: err}
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				d.logger.Error("failed to roll back project save",
					zap.String("project_id", p.ID),
					zap.Error(rbErr))
			}
		}
	}()

	if err = UpsertUser(ctx, tx, UserRow{ID: owner.ID, Email: owner.Email}); err != nil {
		return &TransactionError{Step: StepUpsertUser, Err: err}
	}
	if err = UpsertProject(ctx, tx, projectRow); err != nil {
		return &TransactionError{Step: StepUpsertProject, Err: err}
	}
	if err = ReplaceImages(ctx, tx, p.ID, imageRows); err != nil {
		return &TransactionError{Step: StepReplaceImages, Err: err}
	}
	if err = ReplaceChats(ctx, tx, p.ID, chatRows); err != nil {
		return &TransactionError{Step: StepReplaceChats, Err: err}
	}
	if d.beforeCommit != nil {
		if err = d.beforeCommit(ctx, tx); err != nil {
			return &TransactionError{Step: StepBeforeCommit, Err: err}
		}
	}
	if err = tx.Commit(); err != nil {
		return &TransactionError{Step: StepCommit, Err: err}
	}

	d.logger.Info("project saved",
		zap.String("project_id", p.ID),
		zap.String("user_id", owner.ID),
		zap.Int("images", len(imageRows)),
		zap.Int("chats", len(chatRows)))
	return nil
}

func UpsertUser(ctx context.Context, q DBTX, u UserRow) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO users (id, email)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email
	`, u.ID, u.Email)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// UpsertProject inserts or updates a project row. created_at and user_id are
// never rewritten; a row owned by another user is left alone and reported as
// ErrForbidden.
func UpsertProject(ctx context.Context, q DBTX, p ProjectRow) error {
	res, err := q.ExecContext(ctx, `
		INSERT INTO projects (id, user_id, name, mode, created_at, updated_at, image_count, user_prompt, reference_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			mode = EXCLUDED.mode,
			updated_at = EXCLUDED.updated_at,
			image_count = EXCLUDED.image_count,
			user_prompt = EXCLUDED.user_prompt,
			reference_url = EXCLUDED.reference_url
		WHERE projects.user_id = EXCLUDED.user_id
	`, p.ID, p.UserID, p.Name, p.Mode, p.CreatedAt, p.UpdatedAt, p.ImageCount, p.UserPrompt, p.ReferenceURL)
	if err != nil {
		return fmt.Errorf("failed to upsert project: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to upsert project: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("failed to upsert project %s: %w", p.ID, models.ErrForbidden)
	}
	return nil
}

// ReplaceImages deletes every image row of the project and inserts rows.
func ReplaceImages(ctx context.Context, q DBTX, projectID string, rows []ImageRow) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM images WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete images: %w", err)
	}

	for _, row := range rows {
		_, err := q.ExecContext(ctx, `
			INSERT INTO images (id, project_id, url, prompt, style_name, type, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, row.ID, projectID, row.URL, row.Prompt, row.StyleName, row.Type, row.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert image %s: %w", row.ID, err)
		}
	}
	return nil
}

// ReplaceChats deletes every chat row of the project and inserts rows.
func ReplaceChats(ctx context.Context, q DBTX, projectID string, rows []ChatRow) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM chats WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete chats: %w", err)
	}

	for _, row := range rows {
		_, err := q.ExecContext(ctx, `
			INSERT INTO chats (id, project_id, role, content, timestamp)
			VALUES ($1, $2, $3, $4, $5)
		`, row.ID, projectID, row.Role, row.Content, row.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to insert chat %s: %w", row.ID, err)
		}
	}
	return nil
}

func ProjectRowFor(userID string, p models.Project) (ProjectRow, error) {
	if p.ReferenceImage.IsInline() {
		return ProjectRow{}, fmt.Errorf("reference image of project %s is not uploaded", p.ID)
	}
	return ProjectRow{
		ID:           p.ID,
		UserID:       userID,
		Name:         p.Name,
		Mode:         string(p.Mode),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		ImageCount:   p.ImageCount,
		UserPrompt:   p.UserPrompt,
		ReferenceURL: p.ReferenceImage.URL(),
	}, nil
}

// ImageRowsFor maps the original and generated images to rows. Inline images
// are rejected; only durable URLs reach the metadata store.
func ImageRowsFor(p models.Project) ([]ImageRow, error) {
	if !p.OriginalImage.IsRemote() {
		return nil, fmt.Errorf("original image of project %s is not a durable url", p.ID)
	}
	if err := models.ValidateGeneratedImages(p.ID, p.GeneratedImages); err != nil {
		return nil, err
	}

	rows := make([]ImageRow, 0, len(p.GeneratedImages)+1)
	rows = append(rows, ImageRow{
		ID:        models.OriginalImageID(p.ID),
		ProjectID: p.ID,
		URL:       sql.NullString{String: p.OriginalImage.URL(), Valid: true},
		StyleName: originalStyleName,
		Type:      ImageTypeOriginal,
		CreatedAt: p.CreatedAt,
	})
	for _, img := range p.GeneratedImages {
		if !img.URL.IsRemote() {
			return nil, fmt.Errorf("generated image %s is not a durable url", img.ID)
		}
		rows = append(rows, ImageRow{
			ID:        img.ID,
			ProjectID: p.ID,
			URL:       sql.NullString{String: img.URL.URL(), Valid: true},
			Prompt:    img.Prompt,
			StyleName: img.StyleName,
			Type:      ImageTypeGenerated,
			CreatedAt: img.Timestamp,
		})
	}
	return rows, nil
}

func ChatRowsFor(p models.Project) []ChatRow {
	rows := make([]ChatRow, 0, len(p.ChatMessages))
	for i, msg := range p.ChatMessages {
		rows = append(rows, ChatRow{
			ID:        fmt.Sprintf("chat_%s_%d_%06d", p.ID, msg.Timestamp, i),
			ProjectID: p.ID,
			Role:      string(msg.Role),
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		})
	}
	return rows
}

const projectColumns = `id, user_id, name, mode, created_at, updated_at, image_count, user_prompt, reference_url`

func scanProjectRow(scan func(dest ...interface{}) error) (ProjectRow, error) {
	var row ProjectRow
	err := scan(&row.ID, &row.UserID, &row.Name, &row.Mode, &row.CreatedAt, &row.UpdatedAt,
		&row.ImageCount, &row.UserPrompt, &row.ReferenceURL)
	return row, err
}

// ListProjectsForUser returns the user's projects, most recently updated
// first. Read failures never propagate: a failed listing query yields an
// empty result and a project whose rows cannot be read is skipped.
func (d *DatabaseClient) ListProjectsForUser(ctx context.Context, userID string) []models.Project {
	projectRows, err := d.listProjectRows(ctx, userID)
	if err != nil {
		d.logger.Error("failed to list projects",
			zap.String("user_id", userID),
			zap.Error(err))
		return []models.Project{}
	}

	projects := make([]models.Project, 0, len(projectRows))
	for _, row := range projectRows {
		p, err := d.assemble(ctx, d.db, row)
		if err != nil {
			readErr := &ReadQueryError{ProjectID: row.ID, Err: err}
			d.logger.Warn("skipping unreadable project",
				zap.String("user_id", userID),
				zap.String("project_id", row.ID),
				zap.Error(readErr))
			continue
		}
		projects = append(projects, p)
	}
	return projects
}

// The rows are fully read and closed before per-project queries run.
func (d *DatabaseClient) listProjectRows(ctx context.Context, userID string) ([]ProjectRow, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE user_id = $1
		ORDER BY updated_at DESC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var out []ProjectRow
	for rows.Next() {
		row, err := scanProjectRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return out, nil
}

// GetProject reads a single project strictly: any unreadable row is an error.
func (d *DatabaseClient) GetProject(ctx context.Context, userID, projectID string) (*models.Project, error) {
	row, err := scanProjectRow(d.db.QueryRowContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE id = $1 AND user_id = $2
	`, projectID, userID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", projectID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	p, err := d.assemble(ctx, d.db, row)
	if err != nil {
		return nil, &ReadQueryError{ProjectID: projectID, Err: err}
	}
	return &p, nil
}

// DeleteProject removes the project row; images and chats follow through
// ON DELETE CASCADE.
func (d *DatabaseClient) DeleteProject(ctx context.Context, userID, projectID string) error {
	res, err := d.db.ExecContext(ctx, `
		DELETE FROM projects
		WHERE id = $1 AND user_id = $2
	`, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("project %s: %w", projectID, models.ErrNotFound)
	}

	d.logger.Info("project deleted",
		zap.String("project_id", projectID),
		zap.String("user_id", userID))
	return nil
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}

func (d *DatabaseClient) assemble(ctx context.Context, q DBTX, row ProjectRow) (models.Project, error) {
	mode, err := models.ParseMode(row.Mode)
	if err != nil {
		return models.Project{}, err
	}

	p := models.Project{
		ID:              row.ID,
		Name:            row.Name,
		Mode:            mode,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
		ImageCount:      row.ImageCount,
		UserPrompt:      row.UserPrompt,
		GeneratedImages: []models.GeneratedImage{},
		ChatMessages:    []models.ChatMessage{},
		SuggestedStyles: []models.SuggestedStyle{},
	}
	if row.ReferenceURL != "" {
		p.ReferenceImage = models.RemoteImage(row.ReferenceURL)
	}

	images, err := d.imageRows(ctx, q, row.ID)
	if err != nil {
		return models.Project{}, err
	}
	for _, img := range images {
		if !img.URL.Valid || img.URL.String == "" {
			return models.Project{}, fmt.Errorf("image %s has no url", img.ID)
		}
		switch img.Type {
		case ImageTypeOriginal:
			p.OriginalImage = models.RemoteImage(img.URL.String)
		case ImageTypeGenerated:
			p.GeneratedImages = append(p.GeneratedImages, models.GeneratedImage{
				ID:        img.ID,
				URL:       models.RemoteImage(img.URL.String),
				Prompt:    img.Prompt,
				StyleName: img.StyleName,
				Timestamp: img.CreatedAt,
			})
		default:
			return models.Project{}, fmt.Errorf("image %s has unknown type %q", img.ID, img.Type)
		}
	}

	chats, err := d.chatRows(ctx, q, row.ID)
	if err != nil {
		return models.Project{}, err
	}
	for _, c := range chats {
		role, err := models.ParseRole(c.Role)
		if err != nil {
			return models.Project{}, fmt.Errorf("chat %s: %w", c.ID, err)
		}
		p.ChatMessages = append(p.ChatMessages, models.ChatMessage{
			Role:      role,
			Content:   c.Content,
			Timestamp: c.Timestamp,
			Type:      models.MessageText,
		})
	}

	return p, nil
}

func (d *DatabaseClient) imageRows(ctx context.Context, q DBTX, projectID string) ([]ImageRow, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, project_id, url, prompt, style_name, type, created_at
		FROM images
		WHERE project_id = $1
		ORDER BY created_at ASC, id ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var out []ImageRow
	for rows.Next() {
		var r ImageRow
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.URL, &r.Prompt, &r.StyleName, &r.Type, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate images: %w", err)
	}
	return out, nil
}

func (d *DatabaseClient) chatRows(ctx context.Context, q DBTX, projectID string) ([]ChatRow, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, project_id, role, content, timestamp
		FROM chats
		WHERE project_id = $1
		ORDER BY timestamp ASC, id ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	var out []ChatRow
	for rows.Next() {
		var r ChatRow
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Role, &r.Content, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chats: %w", err)
	}
	return out, nil
}
