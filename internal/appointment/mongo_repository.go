package appointment

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// MongoRepository stores users, doctors and appointments as documents. The
// slot ledger lives inside the doctor document under slots_booked.
type MongoRepository struct {
	client       *mongo.Client
	users        *mongo.Collection
	doctors      *mongo.Collection
	appointments *mongo.Collection
}

func NewMongoRepository(client *mongo.Client, dbName string) *MongoRepository {
	db := client.Database(dbName)
	return &MongoRepository{
		client:       client,
		users:        db.Collection("users"),
		doctors:      db.Collection("doctors"),
		appointments: db.Collection("appointments"),
	}
}

// EnsureIndexes creates the unique email indexes and the lookup indexes used
// by the list and payment queries.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	models := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{r.users, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique}},
		{r.doctors, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique}},
		{r.appointments, mongo.IndexModel{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: -1}}}},
		{r.appointments, mongo.IndexModel{Keys: bson.D{{Key: "docId", Value: 1}, {Key: "date", Value: -1}}}},
	}
	for _, m := range models {
		if _, err := m.coll.Indexes().CreateOne(ctx, m.model); err != nil {
			return fmt.Errorf("create index on %s: %w", m.coll.Name(), err)
		}
	}
	return nil
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func emailFilter(email string) bson.D {
	pattern := "^" + regexp.QuoteMeta(email) + "$"
	return bson.D{{Key: "email", Value: bson.Regex{Pattern: pattern, Options: "i"}}}
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter any, notFound error, opts ...options.Lister[options.FindOneOptions]) (*T, error) {
	var out T
	if err := coll.FindOne(ctx, filter, opts...).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound
		}
		return nil, fmt.Errorf("find in %s: %w", coll.Name(), err)
	}
	return &out, nil
}

// Users

func (r *MongoRepository) CreateUser(ctx context.Context, u *User) error {
	if _, err := r.users.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *MongoRepository) GetUserByID(ctx context.Context, id string) (*User, error) {
	return findOne[User](ctx, r.users, bson.D{{Key: "_id", Value: id}}, ErrUserNotFound)
}

func (r *MongoRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return findOne[User](ctx, r.users, emailFilter(email), ErrUserNotFound)
}

func (r *MongoRepository) UpdateUserProfile(ctx context.Context, id string, upd ProfileUpdate) error {
	res, err := r.users.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: bson.D{
		{Key: "name", Value: upd.Name},
		{Key: "phone", Value: upd.Phone},
		{Key: "address", Value: upd.Address},
		{Key: "dob", Value: upd.DOB},
		{Key: "gender", Value: upd.Gender},
	}}})
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *MongoRepository) UpdateUserImage(ctx context.Context, id, imageURL string) error {
	res, err := r.users.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "image", Value: imageURL}}}})
	if err != nil {
		return fmt.Errorf("update user image: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *MongoRepository) CountUsers(ctx context.Context) (int64, error) {
	n, err := r.users.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// Doctors

func (r *MongoRepository) CreateDoctor(ctx context.Context, d *Doctor) error {
	if d.SlotsBooked == nil {
		d.SlotsBooked = make(SlotLedger)
	}
	if _, err := r.doctors.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (r *MongoRepository) GetDoctorByID(ctx context.Context, id string) (*Doctor, error) {
	return findOne[Doctor](ctx, r.doctors, bson.D{{Key: "_id", Value: id}}, ErrDoctorNotFound)
}

func (r *MongoRepository) GetDoctorByEmail(ctx context.Context, email string) (*Doctor, error) {
	return findOne[Doctor](ctx, r.doctors, emailFilter(email), ErrDoctorNotFound)
}

func (r *MongoRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	cur, err := r.doctors.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	out := make([]Doctor, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode doctors: %w", err)
	}
	return out, nil
}

func (r *MongoRepository) UpdateDoctorProfile(ctx context.Context, id string, upd DoctorProfileUpdate) error {
	res, err := r.doctors.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: bson.D{
		{Key: "fees", Value: upd.Fees},
		{Key: "address", Value: upd.Address},
		{Key: "available", Value: upd.Available},
		{Key: "about", Value: upd.About},
		{Key: "experience", Value: upd.Experience},
	}}})
	if err != nil {
		return fmt.Errorf("update doctor profile: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func (r *MongoRepository) ToggleAvailability(ctx context.Context, id string) (bool, error) {
	flip := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "available", Value: bson.D{{Key: "$not", Value: "$available"}}}}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var d Doctor
	err := r.doctors.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, flip, opts).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, ErrDoctorNotFound
		}
		return false, fmt.Errorf("toggle availability: %w", err)
	}
	return d.Available, nil
}

// BookSlot pushes the time only when the doctor is available and the date's
// array does not already hold it. A miss is classified with a second read.
func (r *MongoRepository) BookSlot(ctx context.Context, doctorID, date, slotTime string) error {
	field := "slots_booked." + date
	filter := bson.D{
		{Key: "_id", Value: doctorID},
		{Key: "available", Value: true},
		{Key: field, Value: bson.D{{Key: "$ne", Value: slotTime}}},
	}
	update := bson.D{{Key: "$push", Value: bson.D{{Key: field, Value: slotTime}}}}

	res, err := r.doctors.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("book slot: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	d, err := r.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return err
	}
	if !d.Available {
		return ErrSlotUnavailable
	}
	return ErrSlotConflict
}

func (r *MongoRepository) ReleaseSlot(ctx context.Context, doctorID, date, slotTime string) error {
	field := "slots_booked." + date
	_, err := r.doctors.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: doctorID}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: field, Value: slotTime}}}},
	)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

// Appointments

func (r *MongoRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	if _, err := r.appointments.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *MongoRepository) GetAppointmentByID(ctx context.Context, id string) (*Appointment, error) {
	return findOne[Appointment](ctx, r.appointments, bson.D{{Key: "_id", Value: id}}, ErrAppointmentNotFound)
}

func (r *MongoRepository) findAppointments(ctx context.Context, filter bson.D, limit int64) ([]Appointment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := r.appointments.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find appointments: %w", err)
	}
	out := make([]Appointment, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode appointments: %w", err)
	}
	return out, nil
}

func (r *MongoRepository) ListAppointmentsByUser(ctx context.Context, userID string) ([]Appointment, error) {
	return r.findAppointments(ctx, bson.D{{Key: "userId", Value: userID}}, 0)
}

func (r *MongoRepository) ListAppointmentsByDoctor(ctx context.Context, docID string) ([]Appointment, error) {
	return r.findAppointments(ctx, bson.D{{Key: "docId", Value: docID}}, 0)
}

func (r *MongoRepository) ListAppointments(ctx context.Context) ([]Appointment, error) {
	return r.findAppointments(ctx, bson.D{}, 0)
}

func (r *MongoRepository) findAndSet(ctx context.Context, filter, set bson.D, sort bson.D) (*Appointment, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if sort != nil {
		opts.SetSort(sort)
	}

	var a Appointment
	err := r.appointments.FindOneAndUpdate(ctx, filter, bson.D{{Key: "$set", Value: set}}, opts).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	return &a, nil
}

func (r *MongoRepository) MarkCancelled(ctx context.Context, id string) (*Appointment, error) {
	return r.findAndSet(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "cancelled", Value: false}},
		bson.D{{Key: "cancelled", Value: true}},
		nil,
	)
}

func (r *MongoRepository) MarkCompleted(ctx context.Context, id string) (*Appointment, error) {
	return r.findAndSet(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "cancelled", Value: false}},
		bson.D{{Key: "isCompleted", Value: true}},
		nil,
	)
}

func (r *MongoRepository) SetPendingSession(ctx context.Context, id, sessionID string) error {
	res, err := r.appointments.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "pendingSessionId", Value: sessionID}}}})
	if err != nil {
		return fmt.Errorf("set pending session: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *MongoRepository) MarkPaidByPendingSession(ctx context.Context, userID, sessionID string) (*Appointment, error) {
	return r.findAndSet(ctx,
		bson.D{
			{Key: "userId", Value: userID},
			{Key: "pendingSessionId", Value: sessionID},
			{Key: "payment", Value: false},
			{Key: "cancelled", Value: false},
		},
		bson.D{{Key: "payment", Value: true}, {Key: "sessionId", Value: sessionID}},
		nil,
	)
}

func (r *MongoRepository) MarkLatestUnpaidPaid(ctx context.Context, userID, sessionID string) (*Appointment, error) {
	return r.findAndSet(ctx,
		bson.D{
			{Key: "userId", Value: userID},
			{Key: "payment", Value: false},
			{Key: "cancelled", Value: false},
		},
		bson.D{{Key: "payment", Value: true}, {Key: "sessionId", Value: sessionID}},
		bson.D{{Key: "date", Value: -1}},
	)
}

func (r *MongoRepository) FindPaidBySession(ctx context.Context, userID, sessionID string) (*Appointment, error) {
	return findOne[Appointment](ctx, r.appointments,
		bson.D{
			{Key: "userId", Value: userID},
			{Key: "payment", Value: true},
			{Key: "sessionId", Value: sessionID},
		},
		ErrAppointmentNotFound,
		options.FindOne().SetSort(bson.D{{Key: "date", Value: -1}}),
	)
}

func (r *MongoRepository) FindByPendingSession(ctx context.Context, userID, sessionID string) (*Appointment, error) {
	return findOne[Appointment](ctx, r.appointments,
		bson.D{
			{Key: "userId", Value: userID},
			{Key: "pendingSessionId", Value: sessionID},
		},
		ErrAppointmentNotFound,
		options.FindOne().SetSort(bson.D{{Key: "date", Value: -1}}),
	)
}

func (r *MongoRepository) ListPendingSessions(ctx context.Context, limit int) ([]Appointment, error) {
	return r.findAppointments(ctx, bson.D{
		{Key: "pendingSessionId", Value: bson.D{{Key: "$nin", Value: bson.A{"", nil}}}},
		{Key: "payment", Value: false},
		{Key: "cancelled", Value: false},
	}, int64(limit))
}
