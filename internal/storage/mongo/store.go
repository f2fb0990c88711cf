package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/GolovachevS/dailybot/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection   = "users"
	teamsCollection   = "teams"
	dailiesCollection = "dailys"
)

// collection is the subset of *mongo.Collection the store relies on.
type collection interface {
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) (*mongo.Cursor, error)
	InsertOne(ctx context.Context, document any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	ReplaceOne(ctx context.Context, filter any, replacement any, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
	UpdateOne(ctx context.Context, filter any, update any, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// Store implements the service.Repository interface on top of MongoDB.
type Store struct {
	users   collection
	teams   collection
	dailies collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		users:   db.Collection(usersCollection),
		teams:   db.Collection(teamsCollection),
		dailies: db.Collection(dailiesCollection),
	}
}

// Connect dials the cluster, verifies it answers and returns the store with a disconnect func.
func Connect(ctx context.Context, uri, database string) (*Store, func(context.Context) error, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return New(client.Database(database)), client.Disconnect, nil
}

type userDocument struct {
	ID            string               `bson:"_id"`
	Team          string               `bson:"team"`
	JiraServerURL string               `bson:"jira_server_url"`
	JiraAPIToken  string               `bson:"jira_api_token"`
	JiraEmail     string               `bson:"jira_email"`
	JiraHostType  string               `bson:"jira_host_type"`
	JiraKeys      []string             `bson:"jira_keys"`
	SlackData     domain.SlackUserData `bson:"slack_data"`
}

type teamDocument struct {
	ID           string `bson:"_id"`
	Name         string `bson:"name"`
	DailyChannel string `bson:"daily_channel"`
}

type dailyDocument struct {
	ID      string                        `bson:"_id"`
	Team    string                        `bson:"team"`
	Date    string                        `bson:"date"`
	Reports map[string]domain.DailyReport `bson:"reports"`
}

func newUserDocument(user domain.User) userDocument {
	keys := user.JiraKeys
	if keys == nil {
		keys = []string{}
	}
	return userDocument{
		ID:            user.ID(),
		Team:          user.Team,
		JiraServerURL: user.JiraServerURL,
		JiraAPIToken:  user.JiraAPIToken,
		JiraEmail:     user.JiraEmail,
		JiraHostType:  string(user.JiraHostType),
		JiraKeys:      keys,
		SlackData:     user.SlackData,
	}
}

func (d userDocument) toDomain() domain.User {
	hostType := domain.JiraHostType(d.JiraHostType)
	if hostType == "" {
		hostType = domain.JiraHostCloud
	}
	slackData := d.SlackData
	if slackData.UserID == "" {
		slackData.UserID = d.ID
	}
	return domain.User{
		Team:          d.Team,
		JiraServerURL: d.JiraServerURL,
		JiraAPIToken:  d.JiraAPIToken,
		JiraEmail:     d.JiraEmail,
		JiraHostType:  hostType,
		JiraKeys:      d.JiraKeys,
		SlackData:     slackData,
	}
}

func newDailyDocument(daily domain.Daily) dailyDocument {
	reports := daily.Reports
	if reports == nil {
		reports = map[string]domain.DailyReport{}
	}
	return dailyDocument{ID: daily.ID(), Team: daily.Team, Date: daily.Date, Reports: reports}
}

func (d dailyDocument) toDomain() domain.Daily {
	daily := domain.NewDaily(d.Team, d.Date)
	for userID, report := range d.Reports {
		daily.Reports[userID] = report
	}
	return daily
}

// reportUpdate sets only the given user's entry so concurrent submitters do not clobber each other.
func reportUpdate(team, date, userID string, report domain.DailyReport) bson.M {
	return bson.M{
		"$set":         bson.M{"reports." + userID: report},
		"$setOnInsert": bson.M{"team": team, "date": date},
	}
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, domain.NewNotFoundError("user not found", err)
		}
		return domain.User{}, err
	}
	return doc.toDomain(), nil
}

func (s *Store) PutUser(ctx context.Context, user domain.User) error {
	_, err := s.users.ReplaceOne(ctx, bson.M{"_id": user.ID()}, newUserDocument(user), options.Replace().SetUpsert(true))
	return err
}

func (s *Store) UpdateJiraKeys(ctx context.Context, userID string, keys []string) error {
	if keys == nil {
		keys = []string{}
	}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{"jira_keys": keys}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.NewNotFoundError("user not found", nil)
	}
	return nil
}

func (s *Store) GetTeam(ctx context.Context, name string) (domain.Team, error) {
	var doc teamDocument
	if err := s.teams.FindOne(ctx, bson.M{"_id": name}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Team{}, domain.NewNotFoundError("team not found", err)
		}
		return domain.Team{}, err
	}
	return domain.Team{Name: doc.Name, DailyChannel: doc.DailyChannel}, nil
}

func (s *Store) ListTeams(ctx context.Context) ([]domain.Team, error) {
	cursor, err := s.teams.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []teamDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	teams := make([]domain.Team, 0, len(docs))
	for _, doc := range docs {
		teams = append(teams, domain.Team{Name: doc.Name, DailyChannel: doc.DailyChannel})
	}
	return teams, nil
}

func (s *Store) CreateTeam(ctx context.Context, team domain.Team) error {
	_, err := s.teams.InsertOne(ctx, teamDocument{ID: team.Name, Name: team.Name, DailyChannel: team.DailyChannel})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.NewTeamExistsError(err)
		}
		return err
	}
	return nil
}

func (s *Store) GetDaily(ctx context.Context, team, date string) (domain.Daily, error) {
	var doc dailyDocument
	if err := s.dailies.FindOne(ctx, bson.M{"_id": domain.DailyID(date, team)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Daily{}, domain.NewNotFoundError("daily not found", err)
		}
		return domain.Daily{}, err
	}
	return doc.toDomain(), nil
}

func (s *Store) PutDaily(ctx context.Context, daily domain.Daily) error {
	_, err := s.dailies.ReplaceOne(ctx, bson.M{"_id": daily.ID()}, newDailyDocument(daily), options.Replace().SetUpsert(true))
	return err
}

func (s *Store) PutDailyReport(ctx context.Context, team, date, userID string, report domain.DailyReport) error {
	_, err := s.dailies.UpdateOne(
		ctx,
		bson.M{"_id": domain.DailyID(date, team)},
		reportUpdate(team, date, userID, report),
		options.Update().SetUpsert(true),
	)
	return err
}
