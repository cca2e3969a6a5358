package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"accum-core/internal/coordinator"
)

// getStatus summarizes the running pipeline: pair, latest price, position
// and today's trade count.
func (s *Server) getStatus(c *gin.Context) {
	ctx := c.Request.Context()
	pos := s.Ledger.Position()

	trades, err := s.Store.DailyTradeCount(ctx, s.Symbol, time.Now().Format("2006-01-02"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "INTERNAL_ERROR",
			"error": err.Error(),
		})
		return
	}
	lastTrade, err := s.Store.LastTradeTime(ctx, s.Symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "INTERNAL_ERROR",
			"error": err.Error(),
		})
		return
	}

	resp := gin.H{
		"symbol":            s.Symbol,
		"latest_price":      s.Ledger.LatestPrice(),
		"position":          pos.TotalQuantity,
		"average_cost":      pos.AverageCost,
		"realized_pnl":      pos.RealizedPnL,
		"unrealized_pnl":    pos.UnrealizedPnL,
		"daily_trade_count": trades,
		"dry_run":           s.Meta.DryRun,
		"venue":             s.Meta.Venue,
		"version":           s.Meta.Version,
	}
	if !lastTrade.IsZero() {
		resp["last_trade_time"] = lastTrade.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// getMetrics returns the pipeline metrics snapshot.
func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":  "METRICS_DISABLED",
			"error": "metrics not configured",
		})
		return
	}
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

// getPosition returns the tiered position view.
func (s *Server) getPosition(c *gin.Context) {
	pos := s.Ledger.Position()
	c.JSON(http.StatusOK, gin.H{
		"symbol":         s.Symbol,
		"total":          pos.TotalQuantity,
		"core":           pos.CoreQuantity,
		"tradeable":      s.Ledger.TradeableQuantity(s.Ledger.CorePercent()),
		"average_cost":   pos.AverageCost,
		"realized_pnl":   pos.RealizedPnL,
		"unrealized_pnl": pos.UnrealizedPnL,
		"tiers":          s.Ledger.Tiers(),
		"updated_at":     pos.UpdatedAt,
	})
}

// getBalances returns the base and quote balances.
func (s *Server) getBalances(c *gin.Context) {
	asset := c.Query("asset")
	if asset != "" {
		b := s.Ledger.Balance(asset)
		c.JSON(http.StatusOK, gin.H{"asset": b.Asset, "free": b.Free, "locked": b.Locked})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balances": s.Ledger.Balances()})
}

// getPriceHistory returns persisted closes, newest last.
func (s *Server) getPriceHistory(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_RANGE",
			"error": "hours must be a positive integer",
		})
		return
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	points, err := s.Store.PriceHistory(c.Request.Context(), s.Symbol, since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "INTERNAL_ERROR",
			"error": err.Error(),
		})
		return
	}

	type point struct {
		At    string `json:"at"`
		Price string `json:"price"`
	}
	out := make([]point, 0, len(points))
	for _, p := range points {
		out = append(out, point{At: p.Time.UTC().Format(time.RFC3339), Price: p.Price.String()})
	}
	c.JSON(http.StatusOK, gin.H{"symbol": s.Symbol, "points": out})
}

// getOpenOrders proxies the exchange open-order list.
func (s *Server) getOpenOrders(c *gin.Context) {
	if s.Orders == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":  "ORDERS_DISABLED",
			"error": "order API not configured",
		})
		return
	}
	orders, err := s.Orders.GetOpenOrders(c.Request.Context(), s.Symbol.String())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"code":  "EXCHANGE_ERROR",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// triggerCycle runs one execution cycle on demand. A concurrent cycle is
// reported with 409, everything else with the structured result.
func (s *Server) triggerCycle(c *gin.Context) {
	res := s.Runner.RunCycle(c.Request.Context(), s.Symbol)
	status := http.StatusOK
	if res.Status == coordinator.StatusRejected {
		status = http.StatusConflict
	}
	c.JSON(status, res)
}

// cycleArchive is satisfied by runners that keep a cycle history.
type cycleArchive interface {
	Recent(limit int) []coordinator.CycleRecord
}

func (s *Server) getRecentCycles(c *gin.Context) {
	archive, ok := s.Runner.(cycleArchive)
	if !ok {
		c.JSON(http.StatusServiceUnavailable, apiError("NO_CYCLE_HISTORY", "runner keeps no cycle history"))
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, apiError("INVALID_LIMIT", "limit must be a positive integer"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycles": archive.Recent(limit)})
}
