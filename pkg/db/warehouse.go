package db

import (
	"context"
	"fmt"
	"time"

	"github.com/augmentac/ff2api-postback/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Warehouse represents a connection to the analytics warehouse used for row
// enrichment. Collections mirror the warehouse marts: tracking_events,
// customers, carriers, shipments, loads.
type Warehouse struct {
	client   *mongo.Client
	database *mongo.Database
	log      *logger.Logger
}

// NewWarehouse creates a new warehouse connection
func NewWarehouse(connectionString, databaseName string, log *logger.Logger) (*Warehouse, error) {
	// Set client options
	clientOptions := options.Client().
		ApplyURI(connectionString).
		SetConnectTimeout(30 * time.Second).
		SetSocketTimeout(60 * time.Second)

	// Connect to the warehouse
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to warehouse: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping warehouse: %w", err)
	}

	database := client.Database(databaseName)

	return &Warehouse{
		client:   client,
		database: database,
		log:      log,
	}, nil
}

// Close closes the warehouse connection
func (w *Warehouse) Close(ctx context.Context) error {
	return w.client.Disconnect(ctx)
}

// findOne runs a single-document query with an optional brokerage filter and
// descending sort
func (w *Warehouse) findOne(ctx context.Context, collection string, filter bson.M, brokerageKey, sortField string) (bson.M, error) {
	if brokerageKey != "" {
		filter["brokerage_id"] = brokerageKey
	}

	opts := options.FindOne()
	if sortField != "" {
		opts.SetSort(bson.D{{Key: sortField, Value: -1}})
	}

	var doc bson.M
	err := w.database.Collection(collection).FindOne(ctx, filter, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("warehouse query on %s failed: %w", collection, err)
	}
	return doc, nil
}

// GetTrackingByPRO returns the latest tracking scan for a PRO number
func (w *Warehouse) GetTrackingByPRO(ctx context.Context, proNumber, brokerageKey string) (bson.M, error) {
	return w.findOne(ctx, "tracking_events", bson.M{"pro_number": proNumber}, brokerageKey, "scan_datetime")
}

// GetCustomer returns customer master data for a customer code
func (w *Warehouse) GetCustomer(ctx context.Context, customerCode, brokerageKey string) (bson.M, error) {
	return w.findOne(ctx, "customers", bson.M{"customer_code": customerCode}, brokerageKey, "")
}

// GetCarrier returns carrier master data for a carrier code
func (w *Warehouse) GetCarrier(ctx context.Context, carrierCode string) (bson.M, error) {
	return w.findOne(ctx, "carriers", bson.M{"carrier_code": carrierCode}, "", "")
}

// GetLoadByInternalID returns the full load record for an internal load ID
func (w *Warehouse) GetLoadByInternalID(ctx context.Context, internalLoadID, brokerageKey string) (bson.M, error) {
	return w.findOne(ctx, "loads", bson.M{"internal_load_id": internalLoadID}, brokerageKey, "")
}

// LaneStats summarizes recent shipment history for an origin/destination pair
type LaneStats struct {
	AvgTransitDays float64
	AvgLaneCost    float64
	LaneVolume     int
}

// GetLaneStats aggregates 90-day lane performance for an origin/dest zip pair,
// optionally restricted to one carrier
func (w *Warehouse) GetLaneStats(ctx context.Context, originZip, destZip, carrierCode string) (*LaneStats, error) {
	match := bson.M{
		"origin_zip": originZip,
		"dest_zip":   destZip,
		"ship_date":  bson.M{"$gte": time.Now().AddDate(0, 0, -90)},
	}
	if carrierCode != "" {
		match["carrier_code"] = carrierCode
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":              nil,
			"avg_transit_days": bson.M{"$avg": "$transit_days"},
			"avg_lane_cost":    bson.M{"$avg": "$total_cost"},
			"lane_volume":      bson.M{"$sum": 1},
		}}},
	}

	cursor, err := w.database.Collection("shipments").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("lane aggregation failed: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		AvgTransitDays float64 `bson:"avg_transit_days"`
		AvgLaneCost    float64 `bson:"avg_lane_cost"`
		LaneVolume     int     `bson:"lane_volume"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode lane aggregation: %w", err)
	}

	if len(results) == 0 {
		return &LaneStats{}, nil
	}
	return &LaneStats{
		AvgTransitDays: results[0].AvgTransitDays,
		AvgLaneCost:    results[0].AvgLaneCost,
		LaneVolume:     results[0].LaneVolume,
	}, nil
}
