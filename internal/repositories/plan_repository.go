package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"hopin-service/internal/models"
)

var (
	ErrPlanNotFound   = errors.New("plan not found")
	ErrMemberNotFound = errors.New("plan member not found")
)

// PlanRepository abstracts plan and membership persistence.
type PlanRepository interface {
	CreatePlan(ctx context.Context, plan models.Plan, creator models.PlanMember) (models.Plan, error)
	GetPlan(ctx context.Context, planID string) (models.Plan, error)
	UpdatePlan(ctx context.Context, plan models.Plan) error
	UpdatePlanStatus(ctx context.Context, planID, status string) error
	DeletePlan(ctx context.Context, planID string) error

	GetMember(ctx context.Context, planID, userID string) (models.PlanMember, error)
	GetMemberByID(ctx context.Context, memberID string) (models.PlanMember, error)
	GetMemberByCode(ctx context.Context, planID, code string) (models.PlanMember, error)
	ListMembers(ctx context.Context, planID string) ([]models.PlanMember, error)
	ExistingMemberUserIDs(ctx context.Context, planID string, userIDs []string) (map[string]bool, error)
	InsertMember(ctx context.Context, member models.PlanMember) error
	InsertMembers(ctx context.Context, members []models.PlanMember) error
	UpdateMemberStatus(ctx context.Context, memberID, status string, verificationCode *string) error
	SetMemberVerified(ctx context.Context, memberID string) error
	CountAccepted(ctx context.Context, planID string) (int, error)
}

// PlanRepo is a sqlx implementation of PlanRepository.
type PlanRepo struct {
	db *sqlx.DB
}

// NewPlanRepo constructs a PlanRepo.
func NewPlanRepo(db *sqlx.DB) *PlanRepo {
	return &PlanRepo{db: db}
}

const planColumns = `id, title, description, type, visibility, location, latitude, longitude, date, max_size, status, creator_id, created_at`

// CreatePlan inserts the plan and the creator's accepted membership in one
// transaction so the creator-is-member invariant cannot half-apply.
func (r *PlanRepo) CreatePlan(ctx context.Context, plan models.Plan, creator models.PlanMember) (models.Plan, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Plan{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var stored models.Plan
	if err = tx.QueryRowxContext(ctx, `INSERT INTO plans (id, title, description, type, visibility, location, latitude, longitude, date, max_size, status, creator_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING `+planColumns,
		plan.ID, plan.Title, plan.Description, plan.Type, plan.Visibility, plan.Location,
		plan.Latitude, plan.Longitude, plan.Date, plan.MaxSize, plan.Status, plan.CreatorID).
		StructScan(&stored); err != nil {
		return models.Plan{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO plan_members (id, plan_id, user_id, status, verification_code, is_verified)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		creator.ID, stored.ID, creator.UserID, creator.Status, creator.VerificationCode, creator.IsVerified); err != nil {
		return models.Plan{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Plan{}, err
	}
	return stored, nil
}

// GetPlan fetches a plan by id.
func (r *PlanRepo) GetPlan(ctx context.Context, planID string) (models.Plan, error) {
	var plan models.Plan
	err := r.db.GetContext(ctx, &plan, `SELECT `+planColumns+` FROM plans WHERE id=$1`, planID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Plan{}, ErrPlanNotFound
	}
	return plan, err
}

// UpdatePlan replaces the mutable plan fields.
func (r *PlanRepo) UpdatePlan(ctx context.Context, plan models.Plan) error {
	res, err := r.db.ExecContext(ctx, `UPDATE plans SET title=$2, description=$3, type=$4, visibility=$5, location=$6,
        latitude=$7, longitude=$8, date=$9, max_size=$10, status=$11 WHERE id=$1`,
		plan.ID, plan.Title, plan.Description, plan.Type, plan.Visibility, plan.Location,
		plan.Latitude, plan.Longitude, plan.Date, plan.MaxSize, plan.Status)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrPlanNotFound
	}
	return nil
}

// UpdatePlanStatus sets only the plan status.
func (r *PlanRepo) UpdatePlanStatus(ctx context.Context, planID, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE plans SET status=$2 WHERE id=$1`, planID, status)
	return err
}

// DeletePlan removes member rows before the plan row to satisfy the foreign
// key, in one transaction.
func (r *PlanRepo) DeletePlan(ctx context.Context, planID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM plan_members WHERE plan_id=$1`, planID); err != nil {
		return err
	}
	var res sql.Result
	if res, err = tx.ExecContext(ctx, `DELETE FROM plans WHERE id=$1`, planID); err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		err = ErrPlanNotFound
		return err
	}
	return tx.Commit()
}

const memberColumns = `id, plan_id, user_id, status, verification_code, is_verified, created_at`

// GetMember fetches the membership row for a (plan, user) pair.
func (r *PlanRepo) GetMember(ctx context.Context, planID, userID string) (models.PlanMember, error) {
	var member models.PlanMember
	err := r.db.GetContext(ctx, &member, `SELECT `+memberColumns+` FROM plan_members WHERE plan_id=$1 AND user_id=$2`, planID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PlanMember{}, ErrMemberNotFound
	}
	return member, err
}

// GetMemberByID fetches a membership row by its id.
func (r *PlanRepo) GetMemberByID(ctx context.Context, memberID string) (models.PlanMember, error) {
	var member models.PlanMember
	err := r.db.GetContext(ctx, &member, `SELECT `+memberColumns+` FROM plan_members WHERE id=$1`, memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PlanMember{}, ErrMemberNotFound
	}
	return member, err
}

// GetMemberByCode looks up an accepted member by verification code.
func (r *PlanRepo) GetMemberByCode(ctx context.Context, planID, code string) (models.PlanMember, error) {
	var member models.PlanMember
	err := r.db.GetContext(ctx, &member, `SELECT `+memberColumns+` FROM plan_members
        WHERE plan_id=$1 AND verification_code=$2 AND status=$3`, planID, code, models.MemberStatusAccepted)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PlanMember{}, ErrMemberNotFound
	}
	return member, err
}

// ListMembers returns every membership row for a plan.
func (r *PlanRepo) ListMembers(ctx context.Context, planID string) ([]models.PlanMember, error) {
	var members []models.PlanMember
	err := r.db.SelectContext(ctx, &members, `SELECT `+memberColumns+` FROM plan_members WHERE plan_id=$1 ORDER BY created_at ASC`, planID)
	return members, err
}

// ExistingMemberUserIDs reports which of the given users already have a
// membership row in any status.
func (r *PlanRepo) ExistingMemberUserIDs(ctx context.Context, planID string, userIDs []string) (map[string]bool, error) {
	existing := map[string]bool{}
	if len(userIDs) == 0 {
		return existing, nil
	}
	rows, err := r.db.QueryxContext(ctx, `SELECT user_id FROM plan_members WHERE plan_id=$1 AND user_id = ANY($2)`, planID, pq.Array(userIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

// InsertMember inserts a single membership row.
func (r *PlanRepo) InsertMember(ctx context.Context, member models.PlanMember) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO plan_members (id, plan_id, user_id, status, verification_code, is_verified)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		member.ID, member.PlanID, member.UserID, member.Status, member.VerificationCode, member.IsVerified)
	return err
}

// InsertMembers inserts membership rows in one transaction.
func (r *PlanRepo) InsertMembers(ctx context.Context, members []models.PlanMember) error {
	if len(members) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, member := range members {
		if _, err = tx.ExecContext(ctx, `INSERT INTO plan_members (id, plan_id, user_id, status, verification_code, is_verified)
            VALUES ($1, $2, $3, $4, $5, $6)`,
			member.ID, member.PlanID, member.UserID, member.Status, member.VerificationCode, member.IsVerified); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpdateMemberStatus transitions a membership row, optionally attaching a
// freshly issued verification code.
func (r *PlanRepo) UpdateMemberStatus(ctx context.Context, memberID, status string, verificationCode *string) error {
	var res sql.Result
	var err error
	if verificationCode != nil {
		res, err = r.db.ExecContext(ctx, `UPDATE plan_members SET status=$2, verification_code=$3 WHERE id=$1`, memberID, status, *verificationCode)
	} else {
		res, err = r.db.ExecContext(ctx, `UPDATE plan_members SET status=$2 WHERE id=$1`, memberID, status)
	}
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// SetMemberVerified flags the member verified. The code column is left in
// place; the ticket stays redeemable.
func (r *PlanRepo) SetMemberVerified(ctx context.Context, memberID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE plan_members SET is_verified=TRUE WHERE id=$1`, memberID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// CountAccepted counts accepted members of a plan.
func (r *PlanRepo) CountAccepted(ctx context.Context, planID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM plan_members WHERE plan_id=$1 AND status=$2`, planID, models.MemberStatusAccepted)
	return count, err
}
