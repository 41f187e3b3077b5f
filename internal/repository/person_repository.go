package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/umworks/aurora-sync/internal/models"
)

// PersonRepository handles persistence of people and their email addresses.
type PersonRepository struct {
	db DBTX
}

// NewPersonRepository constructs the repository.
func NewPersonRepository(db DBTX) *PersonRepository {
	return &PersonRepository{db: db}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *PersonRepository) WithTx(tx DBTX) *PersonRepository {
	return &PersonRepository{db: tx}
}

const personColumns = `id, username, surname, given_name, common_name, active, created_at, updated_at`

// FindByUsername returns the person holding the given login.
func (r *PersonRepository) FindByUsername(ctx context.Context, username string) (*models.Person, error) {
	const query = `SELECT ` + personColumns + ` FROM people WHERE username = $1`
	var person models.Person
	if err := r.db.GetContext(ctx, &person, query, username); err != nil {
		return nil, err
	}
	return &person, nil
}

// FindByEmail returns the person owning an active address.
func (r *PersonRepository) FindByEmail(ctx context.Context, address string) (*models.Person, error) {
	const query = `SELECT p.id, p.username, p.surname, p.given_name, p.common_name, p.active, p.created_at, p.updated_at
        FROM people p
        JOIN email_addresses e ON e.person_id = p.id AND e.active = TRUE
        WHERE lower(e.address) = lower($1)
        LIMIT 1`
	var person models.Person
	if err := r.db.GetContext(ctx, &person, query, address); err != nil {
		return nil, err
	}
	return &person, nil
}

// FindByID returns a person by primary key.
func (r *PersonRepository) FindByID(ctx context.Context, id string) (*models.Person, error) {
	const query = `SELECT ` + personColumns + ` FROM people WHERE id = $1`
	var person models.Person
	if err := r.db.GetContext(ctx, &person, query, id); err != nil {
		return nil, err
	}
	return &person, nil
}

// Create persists a new person record.
func (r *PersonRepository) Create(ctx context.Context, person *models.Person) error {
	if person.ID == "" {
		person.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	person.CreatedAt = now
	person.UpdatedAt = now
	person.Active = true
	const query = `INSERT INTO people (id, username, surname, given_name, common_name, active, created_at, updated_at)
        VALUES (:id, :username, :surname, :given_name, :common_name, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, person); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

// Update persists name, username and active changes.
func (r *PersonRepository) Update(ctx context.Context, person *models.Person) error {
	person.UpdatedAt = time.Now().UTC()
	const query = `UPDATE people SET username = :username, surname = :surname, given_name = :given_name,
        common_name = :common_name, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, person); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update person: %w", err)
	}
	return nil
}

// AddEmail records an address for a person unless it is already known.
// Preferred is only honored on first insert.
func (r *PersonRepository) AddEmail(ctx context.Context, email *models.EmailAddress) error {
	if email.ID == "" {
		email.ID = uuid.NewString()
	}
	email.CreatedAt = time.Now().UTC()
	email.Active = true
	const query = `INSERT INTO email_addresses (id, person_id, address, type_slug, preferred, active, created_at)
        VALUES (:id, :person_id, :address, :type_slug, :preferred, :active, :created_at)
        ON CONFLICT (person_id, address) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("add email: %w", err)
	}
	return nil
}

// ListEmails returns the active addresses for a person, preferred first.
func (r *PersonRepository) ListEmails(ctx context.Context, personID string) ([]models.EmailAddress, error) {
	const query = `SELECT id, person_id, address, type_slug, preferred, active, created_at
        FROM email_addresses WHERE person_id = $1 AND active = TRUE ORDER BY preferred DESC, created_at`
	var emails []models.EmailAddress
	if err := r.db.SelectContext(ctx, &emails, query, personID); err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	return emails, nil
}
