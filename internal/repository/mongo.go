package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"chirp/internal/database"
	"chirp/internal/models"
	"chirp/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoUserRepository stores users in the users collection.
// Username and email lookups use the case-insensitive collation the unique indexes are built with.
type mongoUserRepository struct {
	coll *mongo.Collection
	log  observability.RepoLogger
}

// NewMongoUserRepository returns a MongoDB-backed UserRepository.
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{
		coll: db.Collection(database.UsersCollection),
		log:  observability.NewRepoLogger(database.UsersCollection),
	}
}

func (r *mongoUserRepository) Create(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("create", database.UsersCollection)()

	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.NewConflictError("Username or email already exists")
		}
		r.log.Failed(ctx, "create", err)
		return models.NewInternalError(err)
	}
	r.log.Created(ctx, slog.String("id", user.ID))
	return nil
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := r.findOne(ctx, bson.M{"_id": id}, nil)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", id)
	}
	return user, nil
}

func (r *mongoUserRepository) GetByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	defer observability.TrackQuery("get_by_ids", database.UsersCollection)()

	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": models.NormalizeEmail(email)}, database.CaseInsensitive)
}

func (r *mongoUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": strings.TrimSpace(username)}, database.CaseInsensitive)
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M, collation *options.Collation) (*models.User, error) {
	defer observability.TrackQuery("find_one", database.UsersCollection)()

	opts := options.FindOne()
	if collation != nil {
		opts.SetCollation(collation)
	}

	var user models.User
	if err := r.coll.FindOne(ctx, filter, opts).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *mongoUserRepository) Update(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("update", database.UsersCollection)()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
		"username":   user.Username,
		"email":      user.Email,
		"bio":        user.Bio,
		"profilePic": user.ProfilePic,
		"updatedAt":  user.UpdatedAt,
	}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.NewConflictError("Username or email already exists")
		}
		r.log.Failed(ctx, "update", err)
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("User", user.ID)
	}
	r.log.Updated(ctx, slog.String("id", user.ID))
	return nil
}

// mongoPostRepository stores each post as one document with embedded likes and comments.
type mongoPostRepository struct {
	coll *mongo.Collection
	log  observability.RepoLogger
}

// NewMongoPostRepository returns a MongoDB-backed PostRepository.
func NewMongoPostRepository(db *mongo.Database) PostRepository {
	return &mongoPostRepository{
		coll: db.Collection(database.PostsCollection),
		log:  observability.NewRepoLogger(database.PostsCollection),
	}
}

func (r *mongoPostRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", database.PostsCollection)()

	if _, err := r.coll.InsertOne(ctx, post); err != nil {
		r.log.Failed(ctx, "create", err)
		return models.NewInternalError(err)
	}
	r.log.Created(ctx, slog.String("id", post.ID), slog.String("user_id", post.UserID))
	return nil
}

func (r *mongoPostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	defer observability.TrackQuery("get_by_id", database.PostsCollection)()

	var post models.Post
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&post); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *mongoPostRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	defer observability.TrackQuery("get_by_ids", database.PostsCollection)()

	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	var posts []*models.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *mongoPostRepository) List(ctx context.Context, authorID string, limit, offset int) ([]*models.Post, int64, error) {
	defer observability.TrackQuery("list", database.PostsCollection)()
	limit, offset = pageBounds(limit, offset)

	filter := bson.M{}
	if authorID != "" {
		filter["userId"] = authorID
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	var posts []*models.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

func (r *mongoPostRepository) Update(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("update", database.PostsCollection)()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": post.ID}, post)
	if err != nil {
		r.log.Failed(ctx, "update", err)
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("Post", post.ID)
	}
	r.log.Updated(ctx, slog.String("id", post.ID),
		slog.Int("likes", len(post.Likes)), slog.Int("comments", len(post.Comments)))
	return nil
}

func (r *mongoPostRepository) Delete(ctx context.Context, id string) error {
	defer observability.TrackQuery("delete", database.PostsCollection)()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		r.log.Failed(ctx, "delete", err)
		return models.NewInternalError(err)
	}
	if res.DeletedCount == 0 {
		return models.NewNotFoundError("Post", id)
	}
	r.log.Deleted(ctx, slog.String("id", id))
	return nil
}

type mongoNotificationRepository struct {
	coll *mongo.Collection
	log  observability.RepoLogger
}

// NewMongoNotificationRepository returns a MongoDB-backed NotificationRepository.
func NewMongoNotificationRepository(db *mongo.Database) NotificationRepository {
	return &mongoNotificationRepository{
		coll: db.Collection(database.NotificationsCollection),
		log:  observability.NewRepoLogger(database.NotificationsCollection),
	}
}

func (r *mongoNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	defer observability.TrackQuery("create", database.NotificationsCollection)()

	if _, err := r.coll.InsertOne(ctx, n); err != nil {
		r.log.Failed(ctx, "create", err)
		return models.NewInternalError(err)
	}
	r.log.Created(ctx, slog.String("id", n.ID),
		slog.String("type", string(n.Type)), slog.String("recipient", n.UserID))
	return nil
}

func (r *mongoNotificationRepository) ListByRecipient(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	defer observability.TrackQuery("list_by_recipient", database.NotificationsCollection)()

	if limit <= 0 || limit > NotificationListLimit {
		limit = NotificationListLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	var out []*models.Notification
	if err := cur.All(ctx, &out); err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}
