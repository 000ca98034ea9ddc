package storage

import (
	"context"
	"errors"
	"time"

	"astrochat/backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const messageCollection = "messages"

func (s *Service) messages() *mongo.Collection {
	return s.Mongo.Collection(messageCollection)
}

func (s *Service) CreateMessage(ctx context.Context, msg *models.Message) error {
	_, err := s.messages().InsertOne(ctx, msg)
	return err
}

func (s *Service) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	err := s.messages().FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage removes the message only when senderID authored it.
func (s *Service) DeleteMessage(ctx context.Context, id, senderID string) (bool, error) {
	res, err := s.messages().DeleteOne(ctx, bson.M{"_id": id, "sender_id": senderID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

// MarkMessagesRead позначає всі непрочитані повідомлення sender -> receiver як прочитані.
func (s *Service) MarkMessagesRead(ctx context.Context, senderID, receiverID string, at time.Time) (int64, error) {
	res, err := s.messages().UpdateMany(ctx,
		bson.M{"sender_id": senderID, "receiver_id": receiverID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true, "read_at": at}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// FindConversation returns one page of the messages between two users, oldest first.
func (s *Service) FindConversation(ctx context.Context, userA, userB string, skip, limit int64) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if skip > 0 {
		opts.SetSkip(skip)
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.messages().Find(ctx, messageFilterDoc(MessageFilter{Between: []string{userA, userB}}), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := []models.Message{}
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *Service) CountMessages(ctx context.Context, f MessageFilter) (int64, error) {
	return s.messages().CountDocuments(ctx, messageFilterDoc(f))
}

// ListConversations groups every message userID took part in by counterpart and keeps
// the newest message of each group. Conversations are ordered by that message, newest first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"sender_id": userID},
			bson.M{"receiver_id": userID},
		}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$sender_id", userID}}, "$receiver_id", "$sender_id",
			}}},
			{Key: "last_message", Value: bson.M{"$first": "$message"}},
			{Key: "last_message_time", Value: bson.M{"$first": "$created_at"}},
			{Key: "last_sender", Value: bson.M{"$first": "$sender_id"}},
			{Key: "unread_count", Value: bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$receiver_id", userID}},
					bson.M{"$eq": bson.A{"$is_read", false}},
				}}, 1, 0,
			}}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last_message_time", Value: -1}}}},
	}

	cursor, err := s.messages().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.ConversationSummary{}
	if err = cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].IsSentByMe = out[i].LastSenderID == userID
	}
	return out, nil
}

func messageFilterDoc(f MessageFilter) bson.M {
	doc := bson.M{}
	if f.SenderID != "" {
		doc["sender_id"] = f.SenderID
	}
	if f.ReceiverID != "" {
		doc["receiver_id"] = f.ReceiverID
	}
	if len(f.Between) == 2 {
		a, b := f.Between[0], f.Between[1]
		doc["$or"] = bson.A{
			bson.M{"sender_id": a, "receiver_id": b},
			bson.M{"sender_id": b, "receiver_id": a},
		}
	}
	if f.UnreadOnly {
		doc["is_read"] = false
	}
	return doc
}
