package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicflow/clinicflow/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Appointment Repository ===========

type apptRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &apptRepoPG{pool: pool}
}

func (r *apptRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const apptCols = `id, patient_id, clinic_id, doctor_id, date, start_time,
	duration_minutes, type, status, patient_notes, clinic_notes, doctor_notes,
	cancellation_reason, clinic_rating, doctor_rating, feedback, prescription_id,
	version, assigned_at, confirmed_at, started_at, completed_at, declined_at,
	cancelled_at, rated_at, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.ClinicID, &a.DoctorID, &a.Date, &a.StartTime,
		&a.DurationMinutes, &a.Type, &a.Status, &a.PatientNotes, &a.ClinicNotes, &a.DoctorNotes,
		&a.CancellationReason, &a.ClinicRating, &a.DoctorRating, &a.Feedback, &a.PrescriptionID,
		&a.Version, &a.AssignedAt, &a.ConfirmedAt, &a.StartedAt, &a.CompletedAt, &a.DeclinedAt,
		&a.CancelledAt, &a.RatedAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *apptRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Version = 1
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointments (id, patient_id, clinic_id, doctor_id, date, start_time,
			duration_minutes, type, status, patient_notes, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, a.PatientID, a.ClinicID, a.DoctorID, a.Date, a.StartTime,
		a.DurationMinutes, a.Type, a.Status, a.PatientNotes, a.Version)
	return err
}

func (r *apptRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

// UpdateVersioned is the compare-and-swap write: the row is updated only if
// its version still equals the version the caller read.
func (r *apptRepoPG) UpdateVersioned(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET
			doctor_id=$3, status=$4, patient_notes=$5, clinic_notes=$6, doctor_notes=$7,
			cancellation_reason=$8, clinic_rating=$9, doctor_rating=$10, feedback=$11,
			prescription_id=$12, assigned_at=$13, confirmed_at=$14, started_at=$15,
			completed_at=$16, declined_at=$17, cancelled_at=$18, rated_at=$19,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2`,
		a.ID, a.Version,
		a.DoctorID, a.Status, a.PatientNotes, a.ClinicNotes, a.DoctorNotes,
		a.CancellationReason, a.ClinicRating, a.DoctorRating, a.Feedback,
		a.PrescriptionID, a.AssignedAt, a.ConfirmedAt, a.StartedAt,
		a.CompletedAt, a.DeclinedAt, a.CancelledAt, a.RatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a moved version.
		var exists bool
		if qErr := r.conn(ctx).QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM appointments WHERE id = $1)`, a.ID).Scan(&exists); qErr != nil {
			return qErr
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	a.Version++
	return nil
}

func (r *apptRepoPG) list(ctx context.Context, column string, id uuid.UUID, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error) {
	where := fmt.Sprintf(`WHERE %s = $1`, column)
	args := []interface{}{id}
	if status != "" {
		where += ` AND status = $2`
		args = append(args, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM appointments %s ORDER BY date DESC, start_time DESC LIMIT $%d OFFSET $%d`,
		apptCols, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *apptRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, "patient_id", patientID, status, limit, offset)
}

func (r *apptRepoPG) ListByClinic(ctx context.Context, clinicID uuid.UUID, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, "clinic_id", clinicID, status, limit, offset)
}

func (r *apptRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, "doctor_id", doctorID, status, limit, offset)
}

func (r *apptRepoPG) BookedTimes(ctx context.Context, clinicID uuid.UUID, date time.Time) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT start_time FROM appointments
		WHERE clinic_id = $1 AND date = $2 AND status <> 'cancelled'
		ORDER BY start_time`, clinicID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

func (r *apptRepoPG) AppendStatusChange(ctx context.Context, sc *StatusChange) error {
	if sc.ID == uuid.Nil {
		sc.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment_status_history
			(id, appointment_id, from_status, to_status, action, actor_role, actor_id, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		sc.ID, sc.AppointmentID, sc.FromStatus, sc.ToStatus, sc.Action,
		sc.ActorRole, sc.ActorID, sc.Note)
	return err
}

func (r *apptRepoPG) ListStatusChanges(ctx context.Context, appointmentID uuid.UUID) ([]*StatusChange, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, appointment_id, from_status, to_status, action, actor_role, actor_id, note, created_at
		FROM appointment_status_history
		WHERE appointment_id = $1 ORDER BY created_at`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*StatusChange
	for rows.Next() {
		var sc StatusChange
		if err := rows.Scan(&sc.ID, &sc.AppointmentID, &sc.FromStatus, &sc.ToStatus,
			&sc.Action, &sc.ActorRole, &sc.ActorID, &sc.Note, &sc.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &sc)
	}
	return items, rows.Err()
}

// =========== Assignment Repository ===========

type assignRepoPG struct{ pool *pgxpool.Pool }

func NewAssignmentRepoPG(pool *pgxpool.Pool) AssignmentRepository {
	return &assignRepoPG{pool: pool}
}

func (r *assignRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const assignCols = `id, appointment_id, doctor_id, clinic_id, assigned_by,
	response_status, response_notes, responded_at, created_at`

func scanAssignment(row pgx.Row) (*DoctorAssignment, error) {
	var da DoctorAssignment
	err := row.Scan(&da.ID, &da.AppointmentID, &da.DoctorID, &da.ClinicID, &da.AssignedBy,
		&da.ResponseStatus, &da.ResponseNotes, &da.RespondedAt, &da.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &da, err
}

func (r *assignRepoPG) Create(ctx context.Context, da *DoctorAssignment) error {
	if da.ID == uuid.Nil {
		da.ID = uuid.New()
	}
	if da.ResponseStatus == "" {
		da.ResponseStatus = ResponsePending
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clinic_doctor_assignments
			(id, appointment_id, doctor_id, clinic_id, assigned_by, response_status)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		da.ID, da.AppointmentID, da.DoctorID, da.ClinicID, da.AssignedBy, da.ResponseStatus)
	return err
}

func (r *assignRepoPG) GetActiveByAppointment(ctx context.Context, appointmentID uuid.UUID) (*DoctorAssignment, error) {
	return scanAssignment(r.conn(ctx).QueryRow(ctx, `
		SELECT `+assignCols+` FROM clinic_doctor_assignments
		WHERE appointment_id = $1 ORDER BY created_at DESC LIMIT 1`, appointmentID))
}

func (r *assignRepoPG) UpdateResponse(ctx context.Context, id uuid.UUID, responseStatus string, notes *string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinic_doctor_assignments
		SET response_status = $2, response_notes = $3, responded_at = NOW()
		WHERE id = $1`, id, responseStatus, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *assignRepoPG) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*DoctorAssignment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+assignCols+` FROM clinic_doctor_assignments
		WHERE appointment_id = $1 ORDER BY created_at`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*DoctorAssignment
	for rows.Next() {
		da, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, da)
	}
	return items, rows.Err()
}
