package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/scheduling"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestAppointmentCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)

	clinicID, patientID, doctorID := uuid.New(), uuid.New(), uuid.New()
	date := time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(sqlmock.AnyArg(), clinicID, patientID, doctorID, date, int64(15000), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	apt := &model.Appointment{
		ClinicID:                clinicID,
		PatientID:               patientID,
		DoctorID:                doctorID,
		Date:                    date,
		AppointmentPriceInCents: 15000,
	}
	require.NoError(t, repo.Create(context.Background(), apt))
	assert.NotEqual(t, uuid.Nil, apt.ID)
	assert.False(t, apt.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentCreateMissingReference(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)

	mock.ExpectExec("INSERT INTO appointments").
		WillReturnError(&pq.Error{Code: "23503"})

	err := repo.Create(context.Background(), &model.Appointment{ClinicID: uuid.New()})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAppointmentUpdateScopedToClinic(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)

	apt := &model.Appointment{
		Base:                    model.Base{ID: uuid.New()},
		ClinicID:                uuid.New(),
		PatientID:               uuid.New(),
		DoctorID:                uuid.New(),
		Date:                    time.Now(),
		AppointmentPriceInCents: 20000,
	}

	mock.ExpectExec(`(?s)UPDATE appointments\s+SET patient_id .* WHERE id = \$7 AND clinic_id = \$5`).
		WithArgs(apt.PatientID, apt.DoctorID, apt.Date, int64(20000), apt.ClinicID, sqlmock.AnyArg(), apt.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), apt))

	mock.ExpectExec("UPDATE appointments").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(context.Background(), apt)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentDelete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)
	clinicID, id := uuid.New(), uuid.New()

	mock.ExpectExec("DELETE FROM appointments WHERE id").
		WithArgs(id, clinicID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), clinicID, id))

	mock.ExpectExec("DELETE FROM appointments WHERE id").
		WithArgs(id, clinicID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), clinicID, id), repository.ErrNotFound)

	mock.ExpectExec("DELETE FROM appointments WHERE id").
		WillReturnError(errors.New("connection reset"))
	err := repo.Delete(context.Background(), clinicID, id)
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentListWithRelations(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)

	clinicID, patientID, doctorID := uuid.New(), uuid.New(), uuid.New()
	later := time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC)
	earlier := time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "clinic_id", "patient_id", "doctor_id", "date",
		"appointment_price_in_cents", "created_at", "updated_at",
		"patient.id", "patient.name", "patient.email", "patient.phone_number", "patient.sex",
		"doctor.id", "doctor.name", "doctor.specialty",
	}).
		AddRow(uuid.New().String(), clinicID.String(), patientID.String(), doctorID.String(), later,
			int64(15000), later, later,
			patientID.String(), "Ana", "ana@example.com", "11999999999", "female",
			doctorID.String(), "Dr. Silva", "Cardiologia").
		AddRow(uuid.New().String(), clinicID.String(), patientID.String(), doctorID.String(), earlier,
			int64(12000), earlier, earlier,
			patientID.String(), "Ana", "ana@example.com", "11999999999", "female",
			doctorID.String(), "Dr. Silva", "Cardiologia")

	mock.ExpectQuery(`(?s)FROM appointments a\s+JOIN patients p .* ORDER BY a.date DESC`).
		WithArgs(clinicID).
		WillReturnRows(rows)

	list, err := repo.ListWithRelations(context.Background(), clinicID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, later, list[0].Date)
	assert.Equal(t, scheduling.Cents(15000), list[0].AppointmentPriceInCents)
	assert.Equal(t, "Ana", list[0].Patient.Name)
	assert.Equal(t, model.SexFemale, list[0].Patient.Sex)
	assert.Equal(t, "Dr. Silva", list[0].Doctor.Name)
	assert.Equal(t, doctorID, list[1].Doctor.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentExistsAt(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)
	clinicID, doctorID := uuid.New(), uuid.New()
	at := time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(clinicID, doctorID, at, nil).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsAt(context.Background(), clinicID, doctorID, at, nil)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientUpdateStampsUpdatedAt(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPatientRepository(db)

	p := &model.Patient{
		Base:        model.Base{ID: uuid.New()},
		ClinicID:    uuid.New(),
		Name:        "Ana",
		Email:       "ana@example.com",
		PhoneNumber: "11999999999",
		Sex:         model.SexFemale,
	}
	mock.ExpectExec("UPDATE patients").
		WithArgs("Ana", "ana@example.com", "11999999999", "female", sqlmock.AnyArg(), p.ID, p.ClinicID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	before := time.Now()
	require.NoError(t, repo.Update(context.Background(), p))
	assert.False(t, p.UpdatedAt.Before(before))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientDeleteCascadesAppointments(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPatientRepository(db)
	clinicID, id := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM appointments WHERE patient_id").
		WithArgs(id, clinicID).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM patients WHERE id").
		WithArgs(id, clinicID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), clinicID, id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientDeleteForeignClinicRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPatientRepository(db)
	clinicID, id := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM appointments WHERE patient_id").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM patients WHERE id").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), clinicID, id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClinicGetByUserID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewClinicRepository(db)
	userID, clinicID := uuid.New(), uuid.New()

	mock.ExpectQuery("FROM users_to_clinics").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(clinicID.String(), "Clínica Central"))

	clinic, err := repo.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, clinicID, clinic.ID)

	mock.ExpectQuery("FROM users_to_clinics").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	_, err = repo.GetByUserID(context.Background(), userID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDoctorGetScopedToClinic(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDoctorRepository(db)
	clinicID, id := uuid.New(), uuid.New()

	mock.ExpectQuery("FROM doctors WHERE id").
		WithArgs(id, clinicID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "clinic_id", "name", "specialty", "avatar_image_url",
			"available_from_week_day", "available_to_week_day",
			"available_from_time", "available_to_time",
			"appointment_price_in_cents", "created_at", "updated_at",
		}).AddRow(id.String(), clinicID.String(), "Dr. Silva", "Cardiologia", nil,
			1, 5, "08:00", "16:00", int64(15000), time.Now(), time.Now()))

	doctor, err := repo.Get(context.Background(), clinicID, id)
	require.NoError(t, err)
	assert.Equal(t, scheduling.Cents(15000), doctor.AppointmentPriceInCents)
	assert.Equal(t, 150.0, doctor.DefaultPrice().Display)
	assert.Nil(t, doctor.AvatarImageURL)
}

func TestMigratorLoadsEmbeddedFiles(t *testing.T) {
	m := NewMigrator(nil)
	migrations, err := m.LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "002_scheduling.sql", migrations[1].Name)
	assert.Contains(t, migrations[1].SQL, "CREATE TABLE IF NOT EXISTS appointments")
}

func TestMigratorUpAppliesPending(t *testing.T) {
	db, mock := newMockDB(t)
	m := NewMigrator(db)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS _migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version, name, applied_at FROM _migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "name", "applied_at"}).
			AddRow(1, "001_core.sql", time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS doctors").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO _migrations").
		WithArgs(2, "002_scheduling.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	count, err := m.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
