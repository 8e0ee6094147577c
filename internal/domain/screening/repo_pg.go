package screening

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pneumo/pneumo/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type caseRepoPG struct{ pool *pgxpool.Pool }

func NewCaseRepoPG(pool *pgxpool.Pool) Repository {
	return &caseRepoPG{pool: pool}
}

func (r *caseRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const caseCols = `id, first_name, surname, address, address_2, city, state, zip,
	email, phone, dob, sex, height, weight, blood_type, smoker_status,
	alcohol_consumption, allergies, vaccination_history,
	fever, cough, cough_duration, cough_type, chest_pain,
	shortness_of_breath, fatigue, chills_sweating,
	worker_id, clinician_id, image_ref, ai_suspected,
	awaiting_clinician_review, clinician_reviewed, condition_confirmed,
	clinician_note, worker_notes, case_closed, last_updated, created_at`

func (r *caseRepoPG) scanCase(row pgx.Row) (*Case, error) {
	var c Case
	err := row.Scan(&c.ID, &c.FirstName, &c.Surname, &c.Address, &c.Address2,
		&c.City, &c.State, &c.Zip,
		&c.Email, &c.Phone, &c.DOB, &c.Sex, &c.Height, &c.Weight,
		&c.BloodType, &c.SmokerStatus,
		&c.AlcoholConsumption, &c.Allergies, &c.VaccinationHistory,
		&c.Fever, &c.Cough, &c.CoughDuration, &c.CoughType, &c.ChestPain,
		&c.ShortnessOfBreath, &c.Fatigue, &c.ChillsSweating,
		&c.WorkerID, &c.ClinicianID, &c.ImageRef, &c.AISuspected,
		&c.AwaitingClinicianReview, &c.ClinicianReviewed, &c.ConditionConfirmed,
		&c.ClinicianNote, &c.WorkerNotes, &c.CaseClosed,
		&c.LastUpdated, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCaseNotFound
	}
	return &c, err
}

func (r *caseRepoPG) Insert(ctx context.Context, c *Case) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO cases (first_name, surname, address, address_2, city, state, zip,
			email, phone, dob, sex, height, weight, blood_type, smoker_status,
			alcohol_consumption, allergies, vaccination_history,
			fever, cough, cough_duration, cough_type, chest_pain,
			shortness_of_breath, fatigue, chills_sweating,
			worker_id, worker_notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,
			$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
		RETURNING id, last_updated, created_at`,
		c.FirstName, c.Surname, c.Address, c.Address2, c.City, c.State, c.Zip,
		c.Email, c.Phone, c.DOB, c.Sex, c.Height, c.Weight, c.BloodType, c.SmokerStatus,
		c.AlcoholConsumption, c.Allergies, c.VaccinationHistory,
		c.Fever, c.Cough, c.CoughDuration, c.CoughType, c.ChestPain,
		c.ShortnessOfBreath, c.Fatigue, c.ChillsSweating,
		c.WorkerID, c.WorkerNotes).
		Scan(&c.ID, &c.LastUpdated, &c.CreatedAt)
}

func (r *caseRepoPG) GetByID(ctx context.Context, id int64) (*Case, error) {
	return r.scanCase(r.conn(ctx).QueryRow(ctx, `SELECT `+caseCols+` FROM cases WHERE id = $1`, id))
}

// columns maps each set patch field to its column, so the UPDATE carries
// exactly the fields the caller provided.
func (p *CasePatch) columns() ([]string, []interface{}) {
	var cols []string
	var args []interface{}
	add := func(col string, v interface{}) {
		cols = append(cols, col)
		args = append(args, v)
	}
	if p.FirstName != nil {
		add("first_name", *p.FirstName)
	}
	if p.Surname != nil {
		add("surname", *p.Surname)
	}
	if p.Address != nil {
		add("address", *p.Address)
	}
	if p.Address2 != nil {
		add("address_2", *p.Address2)
	}
	if p.City != nil {
		add("city", *p.City)
	}
	if p.State != nil {
		add("state", *p.State)
	}
	if p.Zip != nil {
		add("zip", *p.Zip)
	}
	if p.Email != nil {
		add("email", *p.Email)
	}
	if p.Phone != nil {
		add("phone", *p.Phone)
	}
	if p.DOB != nil {
		add("dob", *p.DOB)
	}
	if p.Sex != nil {
		add("sex", *p.Sex)
	}
	if p.Height != nil {
		add("height", *p.Height)
	}
	if p.Weight != nil {
		add("weight", *p.Weight)
	}
	if p.BloodType != nil {
		add("blood_type", *p.BloodType)
	}
	if p.SmokerStatus != nil {
		add("smoker_status", *p.SmokerStatus)
	}
	if p.AlcoholConsumption != nil {
		add("alcohol_consumption", *p.AlcoholConsumption)
	}
	if p.Allergies != nil {
		add("allergies", *p.Allergies)
	}
	if p.VaccinationHistory != nil {
		add("vaccination_history", *p.VaccinationHistory)
	}
	if p.Fever != nil {
		add("fever", *p.Fever)
	}
	if p.Cough != nil {
		add("cough", *p.Cough)
	}
	if p.CoughDuration != nil {
		add("cough_duration", *p.CoughDuration)
	}
	if p.CoughType != nil {
		add("cough_type", *p.CoughType)
	}
	if p.ChestPain != nil {
		add("chest_pain", *p.ChestPain)
	}
	if p.ShortnessOfBreath != nil {
		add("shortness_of_breath", *p.ShortnessOfBreath)
	}
	if p.Fatigue != nil {
		add("fatigue", *p.Fatigue)
	}
	if p.ChillsSweating != nil {
		add("chills_sweating", *p.ChillsSweating)
	}
	if p.WorkerNotes != nil {
		add("worker_notes", *p.WorkerNotes)
	}
	if p.ClinicianNote != nil {
		add("clinician_note", *p.ClinicianNote)
	}
	return cols, args
}

func (r *caseRepoPG) Update(ctx context.Context, id int64, patch CasePatch) error {
	cols, args := patch.columns()
	if len(cols) == 0 {
		return nil
	}
	query := `UPDATE cases SET `
	for i, col := range cols {
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("%s = $%d", col, i+2)
	}
	query += `, last_updated = NOW() WHERE id = $1`
	args = append([]interface{}{id}, args...)

	tag, err := r.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCaseNotFound
	}
	return nil
}

func (r *caseRepoPG) SetClassification(ctx context.Context, id int64, suspected bool) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE cases SET ai_suspected = $2, awaiting_clinician_review = $2,
			last_updated = NOW()
		WHERE id = $1`, id, suspected)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCaseNotFound
	}
	return nil
}

func (r *caseRepoPG) CompleteReview(ctx context.Context, id int64, clinicianID int64, confirmed bool, note *string) (bool, error) {
	// Conditional write: the WHERE clause is the concurrency guard. A
	// second reviewer racing on the same case matches zero rows.
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE cases SET clinician_id = $2, condition_confirmed = $3,
			clinician_note = COALESCE($4, clinician_note),
			awaiting_clinician_review = FALSE, clinician_reviewed = TRUE,
			last_updated = NOW()
		WHERE id = $1 AND awaiting_clinician_review = TRUE
			AND clinician_reviewed = FALSE AND case_closed = FALSE`,
		id, clinicianID, confirmed, note)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *caseRepoPG) SetClosed(ctx context.Context, id int64, closed bool) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE cases SET case_closed = $2, last_updated = NOW() WHERE id = $1`,
		id, closed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCaseNotFound
	}
	return nil
}

func (r *caseRepoPG) SetImageRef(ctx context.Context, id int64, ref string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE cases SET image_ref = $2, last_updated = NOW() WHERE id = $1`,
		id, ref)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCaseNotFound
	}
	return nil
}

func (r *caseRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM cases WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCaseNotFound
	}
	return nil
}

// listWhere runs the shared count-then-page query for the list views.
func (r *caseRepoPG) listWhere(ctx context.Context, where, order string, q Query, extra ...interface{}) ([]*Case, int, error) {
	args := append([]interface{}{}, extra...)
	idx := len(args) + 1

	if q.Search != "" {
		where += fmt.Sprintf(` AND (first_name ILIKE $%d OR surname ILIKE $%d
			OR email ILIKE $%d OR phone ILIKE $%d OR clinician_note ILIKE $%d)`,
			idx, idx, idx, idx, idx)
		args = append(args, "%"+q.Search+"%")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM cases WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + caseCols + ` FROM cases WHERE ` + where +
		` ORDER BY ` + order +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, q.Limit, q.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Case
	for rows.Next() {
		c, err := r.scanCase(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func (r *caseRepoPG) List(ctx context.Context, q Query) ([]*Case, int, error) {
	if q.WorkerID != 0 {
		return r.listWhere(ctx, `case_closed = FALSE AND worker_id = $1`,
			`last_updated ASC`, q, q.WorkerID)
	}
	return r.listWhere(ctx, `case_closed = FALSE`, `last_updated ASC`, q)
}

func (r *caseRepoPG) ListPendingReview(ctx context.Context, q Query) ([]*Case, int, error) {
	return r.listWhere(ctx,
		`awaiting_clinician_review = TRUE AND clinician_reviewed = FALSE AND case_closed = FALSE`,
		`last_updated ASC`, q)
}

func (r *caseRepoPG) ListReviewed(ctx context.Context, q Query) ([]*Case, int, error) {
	return r.listWhere(ctx, `clinician_reviewed = TRUE`, `last_updated ASC`, q)
}

func (r *caseRepoPG) ListConfirmed(ctx context.Context, q Query) ([]*Case, int, error) {
	return r.listWhere(ctx, `condition_confirmed = TRUE AND case_closed = FALSE`,
		`last_updated DESC`, q)
}

func (r *caseRepoPG) ListClosed(ctx context.Context, q Query) ([]*Case, int, error) {
	return r.listWhere(ctx, `case_closed = TRUE`, `last_updated DESC`, q)
}

func (r *caseRepoPG) ListAISuspected(ctx context.Context, q Query) ([]*Case, int, error) {
	return r.listWhere(ctx,
		`ai_suspected = TRUE AND condition_confirmed IS NULL AND case_closed = FALSE`,
		`last_updated ASC`, q)
}

func (r *caseRepoPG) ListFollowUpsForWorker(ctx context.Context, workerID int64, q Query) ([]*Case, int, error) {
	return r.listWhere(ctx,
		`worker_id = $1 AND clinician_reviewed = TRUE AND case_closed = FALSE
			AND clinician_note IS NOT NULL AND clinician_note <> ''`,
		`last_updated DESC`, q, workerID)
}
