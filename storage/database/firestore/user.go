package firestoredb

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"

	"github.com/trezcool/hifdh/core/progress"
	"github.com/trezcool/hifdh/core/user"
)

// userDoc is the users/{uid} document: the identity of the user and, for students,
// the snapshot of their latest progress.
type userDoc struct {
	Name         string    `firestore:"name"`
	Email        string    `firestore:"email"`
	Role         string    `firestore:"role"`
	PasswordHash []byte    `firestore:"passwordHash"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
	LastLogin    time.Time `firestore:"lastLogin"`

	CurrentSabak             string `firestore:"currentSabak"`
	CurrentSabakDhor         string `firestore:"currentSabakDhor"`
	CurrentDhor              string `firestore:"currentDhor"`
	CurrentSabakDhorMistakes string `firestore:"currentSabakDhorMistakes"`
	CurrentDhorMistakes      string `firestore:"currentDhorMistakes"`
	LastUpdatedBy            string `firestore:"lastUpdatedBy"`
	goalDoc
}

type goalDoc struct {
	WeeklyGoal                 string `firestore:"weeklyGoal"`
	WeeklyGoalWeekKey          string `firestore:"weeklyGoalWeekKey"`
	WeeklyGoalStartDateKey     string `firestore:"weeklyGoalStartDateKey"`
	WeeklyGoalCompletedDateKey string `firestore:"weeklyGoalCompletedDateKey"`
	WeeklyGoalDurationDays     *int   `firestore:"weeklyGoalDurationDays"`
}

var userIdentityFields = []string{"name", "email", "role", "passwordHash", "updatedAt", "lastLogin"}

func newGoalDoc(g progress.Goal) goalDoc {
	return goalDoc{
		WeeklyGoal:                 g.Text,
		WeeklyGoalWeekKey:          g.WeekKey,
		WeeklyGoalStartDateKey:     g.StartDateKey,
		WeeklyGoalCompletedDateKey: g.CompletedDateKey,
		WeeklyGoalDurationDays:     g.DurationDays,
	}
}

func (d goalDoc) goal() progress.Goal {
	return progress.Goal{
		Text:             d.WeeklyGoal,
		WeekKey:          d.WeeklyGoalWeekKey,
		StartDateKey:     d.WeeklyGoalStartDateKey,
		CompletedDateKey: d.WeeklyGoalCompletedDateKey,
		DurationDays:     d.WeeklyGoalDurationDays,
	}
}

func newUserDoc(usr user.User) userDoc {
	return userDoc{
		Name:         usr.Name,
		Email:        usr.Email,
		Role:         string(usr.Role),
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
		LastLogin:    usr.LastLogin,
	}
}

func (d userDoc) user(id string) user.User {
	return user.User{
		ID:           id,
		Name:         d.Name,
		Email:        d.Email,
		Role:         user.Role(d.Role),
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
		LastLogin:    d.LastLogin.UTC(),
	}
}

func (d userDoc) snapshot(id string) progress.Snapshot {
	return progress.Snapshot{
		StudentID: id,
		Current: progress.Metrics{
			Sabak:             d.CurrentSabak,
			SabakDhor:         d.CurrentSabakDhor,
			Dhor:              d.CurrentDhor,
			SabakDhorMistakes: d.CurrentSabakDhorMistakes,
			DhorMistakes:      d.CurrentDhorMistakes,
		},
		Goal:          d.goalDoc.goal(),
		LastUpdatedBy: d.LastUpdatedBy,
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

func newSnapshotDoc(snap progress.Snapshot) userDoc {
	return userDoc{
		UpdatedAt:                snap.UpdatedAt,
		CurrentSabak:             snap.Current.Sabak,
		CurrentSabakDhor:         snap.Current.SabakDhor,
		CurrentDhor:              snap.Current.Dhor,
		CurrentSabakDhorMistakes: snap.Current.SabakDhorMistakes,
		CurrentDhorMistakes:      snap.Current.DhorMistakes,
		LastUpdatedBy:            snap.LastUpdatedBy,
		goalDoc:                  newGoalDoc(snap.Goal),
	}
}

func decodeUser(ds *firestore.DocumentSnapshot) (userDoc, error) {
	var doc userDoc
	if err := ds.DataTo(&doc); err != nil {
		return userDoc{}, errors.Wrapf(err, "decoding user %s", ds.Ref.ID)
	}
	return doc, nil
}

type userRepository struct {
	client *firestore.Client
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(client *firestore.Client) user.Repository {
	return &userRepository{client: client}
}

func (repo *userRepository) users() *firestore.CollectionRef {
	return repo.client.Collection(usersCollection)
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	ref := repo.users().NewDoc()
	if usr.ID != "" {
		ref = repo.users().Doc(usr.ID)
	}

	err := repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		iter := tx.Documents(repo.users().Where("email", "==", usr.Email).Limit(1))
		defer iter.Stop()
		if _, err := iter.Next(); err == nil {
			return user.ErrEmailExists
		} else if err != iterator.Done {
			return err
		}
		return tx.Create(ref, newUserDoc(usr))
	})
	if err != nil {
		return user.User{}, storeErr(err, "creating user")
	}
	usr.ID = ref.ID
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if id == "" {
		return user.User{}, user.ErrNotFound
	}
	ds, err := repo.users().Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, storeErr(err, "getting user")
	}
	doc, err := decodeUser(ds)
	if err != nil {
		return user.User{}, err
	}
	return doc.user(ds.Ref.ID), nil
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	iter := repo.users().Where("email", "==", email).Limit(1).Documents(ctx)
	defer iter.Stop()

	ds, err := iter.Next()
	if err == iterator.Done {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, storeErr(err, "querying user by email")
	}
	doc, err := decodeUser(ds)
	if err != nil {
		return user.User{}, err
	}
	return doc.user(ds.Ref.ID), nil
}

func (repo *userRepository) QueryStudents(ctx context.Context, limit int) ([]user.User, error) {
	q := repo.users().Where("role", "==", string(user.RoleStudent)).OrderBy("email", firestore.Asc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	users := make([]user.User, 0)
	for {
		ds, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, storeErr(err, "querying students")
		}
		doc, err := decodeUser(ds)
		if err != nil {
			return nil, err
		}
		users = append(users, doc.user(ds.Ref.ID))
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	ref := repo.users().Doc(usr.ID)
	fields := userIdentityFields
	if usr.PasswordHash == nil {
		fields = fields[:0:0]
		for _, f := range userIdentityFields {
			if f != "passwordHash" {
				fields = append(fields, f)
			}
		}
	}
	err := repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if isNotFound(err) {
				return user.ErrNotFound
			}
			return err
		}
		return tx.Set(ref, newUserDoc(usr), mergePaths(fields))
	})
	if err != nil {
		return user.User{}, storeErr(err, "updating user")
	}
	return repo.GetUserByID(ctx, usr.ID)
}
