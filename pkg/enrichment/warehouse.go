package enrichment

import (
	"context"
	"time"

	"github.com/augmentac/ff2api-postback/pkg/common"
	"github.com/augmentac/ff2api-postback/pkg/config"
	"github.com/augmentac/ff2api-postback/pkg/db"
	"github.com/augmentac/ff2api-postback/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
)

// warehouseStore is the slice of db.Warehouse the source needs
type warehouseStore interface {
	GetTrackingByPRO(ctx context.Context, proNumber, brokerageKey string) (bson.M, error)
	GetCustomer(ctx context.Context, customerCode, brokerageKey string) (bson.M, error)
	GetCarrier(ctx context.Context, carrierCode string) (bson.M, error)
	GetLoadByInternalID(ctx context.Context, internalLoadID, brokerageKey string) (bson.M, error)
	GetLaneStats(ctx context.Context, originZip, destZip, carrierCode string) (*db.LaneStats, error)
}

// Row field aliases the warehouse source accepts for each identifier
var (
	whProFields      = []string{"PRO", "pro_number", "Carrier Pro#", "carrier_pro"}
	whCustomerFields = []string{"customer_code", "Customer Name", "customer_name", "Acct/Customer#"}
	whCarrierFields  = []string{"carrier", "Carrier Name", "carrier_name", "carrier_code"}
	whOriginFields   = []string{"origin_zip", "Origin Zip", "origin_postal_code"}
	whDestFields     = []string{"dest_zip", "Destination Zip", "dest_postal_code"}
)

// WarehouseSource enriches rows from the analytics warehouse: tracking by
// PRO, customer and carrier master data, lane statistics, and full load
// records by internal load ID
type WarehouseSource struct {
	store        warehouseStore
	enrichments  map[string]bool
	useLoadIDs   bool
	brokerageKey string
	log          *logger.Logger
}

// NewWarehouseSource connects to the warehouse and creates the source.
// Connecting is the configuration check for this source.
func NewWarehouseSource(cfg config.SourceConfig, log *logger.Logger) (*WarehouseSource, error) {
	store, err := db.NewWarehouse(cfg.ConnectionString, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	return newWarehouseSource(store, cfg, log), nil
}

func newWarehouseSource(store warehouseStore, cfg config.SourceConfig, log *logger.Logger) *WarehouseSource {
	enrichments := make(map[string]bool, len(cfg.Enrichments))
	for _, name := range cfg.Enrichments {
		enrichments[name] = true
	}

	return &WarehouseSource{
		store:        store,
		enrichments:  enrichments,
		useLoadIDs:   cfg.UseLoadIDs,
		brokerageKey: cfg.BrokerageKey,
		log:          log,
	}
}

// Name returns the source type tag
func (s *WarehouseSource) Name() string { return "warehouse" }

// ValidateConfig succeeds once the connection is established
func (s *WarehouseSource) ValidateConfig() error { return nil }

// IsApplicable reports whether the row carries any identifier the warehouse
// can look up
func (s *WarehouseSource) IsApplicable(row common.Row) bool {
	if s.useLoadIDs {
		return row.GetString("internal_load_id") != ""
	}

	return firstValue(row, whProFields) != "" ||
		firstValue(row, whCustomerFields) != "" ||
		firstValue(row, whCarrierFields) != "" ||
		(firstValue(row, whOriginFields) != "" && firstValue(row, whDestFields) != "")
}

// Enrich adds warehouse fields (wh_ prefix) to a copy of the row
func (s *WarehouseSource) Enrich(ctx context.Context, row common.Row) (common.Row, error) {
	enriched := row.Copy()
	enriched["wh_enrichment_source"] = s.Name()
	enriched["wh_enrichment_timestamp"] = time.Now().Format(time.RFC3339)

	if s.useLoadIDs && row.GetString("internal_load_id") != "" {
		s.enrichByLoadID(ctx, enriched, row.GetString("internal_load_id"))
		return enriched, nil
	}

	if s.enrichments["tracking"] {
		if pro := firstValue(row, whProFields); pro != "" {
			s.enrichTracking(ctx, enriched, pro)
		}
	}
	if s.enrichments["customer"] {
		if customer := firstValue(row, whCustomerFields); customer != "" {
			s.enrichCustomer(ctx, enriched, customer)
		}
	}
	if s.enrichments["carrier"] {
		if carrier := firstValue(row, whCarrierFields); carrier != "" {
			s.enrichCarrier(ctx, enriched, carrier)
		}
	}
	if s.enrichments["lane"] {
		origin := firstValue(row, whOriginFields)
		dest := firstValue(row, whDestFields)
		if origin != "" && dest != "" {
			s.enrichLane(ctx, enriched, origin, dest, firstValue(row, whCarrierFields))
		}
	}

	return enriched, nil
}

func (s *WarehouseSource) enrichTracking(ctx context.Context, enriched common.Row, pro string) {
	doc, err := s.store.GetTrackingByPRO(ctx, pro, s.brokerageKey)
	if err != nil {
		s.log.Errorf("Error getting tracking data for PRO %s: %v", pro, err)
		enriched["wh_tracking_error"] = err.Error()
		return
	}
	if doc == nil {
		enriched["wh_tracking_status"] = "No Data"
		return
	}
	enriched["wh_tracking_status"] = docString(doc, "current_status", "Unknown")
	enriched["wh_last_scan_location"] = docString(doc, "scan_location", "Unknown")
	enriched["wh_last_scan_time"] = doc["scan_datetime"]
	enriched["wh_estimated_delivery"] = doc["estimated_delivery_date"]
}

func (s *WarehouseSource) enrichCustomer(ctx context.Context, enriched common.Row, customer string) {
	doc, err := s.store.GetCustomer(ctx, customer, s.brokerageKey)
	if err != nil {
		s.log.Errorf("Error getting customer data for %s: %v", customer, err)
		enriched["wh_customer_error"] = err.Error()
		return
	}
	if doc == nil {
		enriched["wh_customer_name"] = "Not Found"
		return
	}
	enriched["wh_customer_name"] = docString(doc, "customer_name", "Unknown")
	enriched["wh_account_manager"] = docString(doc, "account_manager", "Unassigned")
	enriched["wh_payment_terms"] = docString(doc, "payment_terms", "Unknown")
	enriched["wh_customer_tier"] = docString(doc, "customer_tier", "Standard")
}

func (s *WarehouseSource) enrichCarrier(ctx context.Context, enriched common.Row, carrier string) {
	doc, err := s.store.GetCarrier(ctx, carrier)
	if err != nil {
		s.log.Errorf("Error getting carrier data for %s: %v", carrier, err)
		enriched["wh_carrier_error"] = err.Error()
		return
	}
	if doc == nil {
		enriched["wh_carrier_name"] = carrier
		return
	}
	enriched["wh_carrier_name"] = docString(doc, "carrier_name", carrier)
	enriched["wh_carrier_otp"] = doc["on_time_percentage"]
	enriched["wh_service_levels"] = docString(doc, "service_levels", "Unknown")
}

func (s *WarehouseSource) enrichLane(ctx context.Context, enriched common.Row, origin, dest, carrier string) {
	stats, err := s.store.GetLaneStats(ctx, origin, dest, carrier)
	if err != nil {
		s.log.Errorf("Error getting lane data for %s-%s: %v", origin, dest, err)
		enriched["wh_lane_error"] = err.Error()
		return
	}
	enriched["wh_avg_transit_days"] = stats.AvgTransitDays
	enriched["wh_avg_lane_cost"] = stats.AvgLaneCost
	enriched["wh_lane_volume"] = stats.LaneVolume
}

func (s *WarehouseSource) enrichByLoadID(ctx context.Context, enriched common.Row, loadID string) {
	doc, err := s.store.GetLoadByInternalID(ctx, loadID, s.brokerageKey)
	if err != nil {
		s.log.Errorf("Error getting load data for ID %s: %v", loadID, err)
		enriched["wh_load_error"] = err.Error()
		return
	}
	if doc == nil {
		enriched["wh_load_status"] = "Not Found"
		return
	}
	enriched["wh_load_status"] = docString(doc, "current_status", "Unknown")
	enriched["wh_pickup_date"] = doc["pickup_date"]
	enriched["wh_delivery_date"] = doc["delivery_date"]
	enriched["wh_total_cost"] = doc["total_cost"]
	enriched["wh_carrier_name"] = docString(doc, "carrier_name", "Unknown")
	enriched["wh_customer_name"] = docString(doc, "customer_name", "Unknown")
}

// firstValue returns the first non-empty row value among the given fields
func firstValue(row common.Row, fields []string) string {
	for _, field := range fields {
		if v := row.GetString(field); v != "" {
			return v
		}
	}
	return ""
}

// docString reads a string field from a warehouse document with a fallback
func docString(doc bson.M, key, fallback string) string {
	if v, ok := doc[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
