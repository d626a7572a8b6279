package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"

	"github.com/InsideOutbtc/nock-bridge/internal/bridge"
	"github.com/InsideOutbtc/nock-bridge/internal/config"
	"github.com/InsideOutbtc/nock-bridge/internal/db"
	"github.com/InsideOutbtc/nock-bridge/internal/ledger"
	"github.com/InsideOutbtc/nock-bridge/internal/oracle"
	"github.com/InsideOutbtc/nock-bridge/internal/state"
	"github.com/InsideOutbtc/nock-bridge/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

type HTTPServer struct {
	bridge      *bridge.Bridge
	state       *state.State
	oracle      *oracle.Cache
	tokenLedger ledger.Ledger
}

func NewHTTPServer(b *bridge.Bridge, st *state.State, cache *oracle.Cache, tokenLedger ledger.Ledger) *HTTPServer {
	return &HTTPServer{
		bridge:      b,
		state:       st,
		oracle:      cache,
		tokenLedger: tokenLedger,
	}
}

func (hs *HTTPServer) Start(ctx context.Context) {
	r := hs.Router()

	addr := ":" + config.AppConfig.HTTPPort
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("HTTP server shutdown error: %v", err)
		}
	}()

	log.Infof("HTTP server is running on port %s", config.AppConfig.HTTPPort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start HTTP server: %v", err)
	}
}

func (hs *HTTPServer) Router() *gin.Engine {
	r := gin.Default()

	v1 := r.Group("/api/v1")
	v1.POST("/deposit", hs.handleDeposit)
	v1.POST("/withdraw", hs.handleWithdraw)
	v1.GET("/bridge/status", hs.handleStatus)
	v1.GET("/deposit/:txhash", hs.handleDepositLookup)
	v1.GET("/balance/:account", hs.handleBalance)
	v1.POST("/oracle/price", hs.handleOraclePush)
	v1.GET("/oracle/latest", hs.handleOracleLatest)
	v1.GET("/oracle/value", hs.handleOracleValue)
	v1.GET("/releases", hs.handleReleases)

	admin := v1.Group("/bridge", adminAuth())
	admin.POST("/pause", hs.handlePause)
	admin.POST("/unpause", hs.handleUnpause)
	admin.POST("/config", hs.handleConfigUpdate)

	return r
}

// adminAuth guards the emergency surface with a bearer token issued by the
// bridge authority. Quorum checks still run behind it, the token only keeps
// random traffic off the admin routes.
func adminAuth() gin.HandlerFunc {
	secret := config.AppConfig.AdminJwtSecret
	if secret == "" {
		log.Warn("ADMIN_JWT_SECRET not set, admin endpoints are unauthenticated")
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

func (hs *HTTPServer) handleDeposit(c *gin.Context) {
	var dto DepositDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	txHash, err := types.ParseTxHash(dto.SourceTxHash)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !common.IsHexAddress(dto.Recipient) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipient address"})
		return
	}
	sigs, err := parseSignatures(dto.Signatures)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := hs.bridge.Deposit(bridge.DepositRequest{
		SourceTxHash: txHash,
		BlockHeight:  dto.BlockHeight,
		Amount:       dto.Amount,
		Recipient:    common.HexToAddress(dto.Recipient),
		Signatures:   sigs,
	})
	if err != nil {
		writeOperationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": result})
}

func (hs *HTTPServer) handleWithdraw(c *gin.Context) {
	var dto WithdrawDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !common.IsHexAddress(dto.Caller) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid caller address"})
		return
	}
	recipient, err := types.ParseTxHash(dto.SourceRecipient)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source recipient: " + err.Error()})
		return
	}
	sigs, err := parseSignatures(dto.Signatures)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := hs.bridge.Withdraw(bridge.WithdrawRequest{
		Caller:          common.HexToAddress(dto.Caller),
		SourceRecipient: recipient,
		Amount:          dto.Amount,
		Signatures:      sigs,
	})
	if err != nil {
		writeOperationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": result})
}

func (hs *HTTPServer) handlePause(c *gin.Context) {
	var dto EmergencyDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sigs, err := parseSignatures(dto.Signatures)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := hs.bridge.Pause(sigs); err != nil {
		writeOperationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (hs *HTTPServer) handleUnpause(c *gin.Context) {
	var dto EmergencyDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sigs, err := parseSignatures(dto.Signatures)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := hs.bridge.Unpause(sigs); err != nil {
		writeOperationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (hs *HTTPServer) handleConfigUpdate(c *gin.Context) {
	var dto ConfigUpdateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sigs, err := parseSignatures(dto.Signatures)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	update := types.ConfigUpdate{
		FeeRateBps: dto.FeeRateBps,
		DailyLimit: dto.DailyLimit,
		Threshold:  dto.Threshold,
	}
	if len(dto.Validators) > 0 {
		validators, err := config.ParseValidatorList(strings.Join(dto.Validators, ","))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		update.Validators = validators
	}
	if err := hs.bridge.UpdateConfig(update, sigs); err != nil {
		writeOperationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (hs *HTTPServer) handleStatus(c *gin.Context) {
	bs := hs.state.GetBridgeState()
	stats, err := hs.state.GetStats()
	if err != nil {
		log.Warnf("Failed to load stats for status endpoint: %v", err)
	}
	status := db.BRIDGE_STATUS_ACTIVE
	if bs.IsPaused {
		status = db.BRIDGE_STATUS_PAUSED
	}
	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"state":  bs,
		"stats":  stats,
	})
}

func (hs *HTTPServer) handleDepositLookup(c *gin.Context) {
	// replay keys are stored as lowercase hex
	txHash := strings.ToLower(strings.TrimPrefix(c.Param("txhash"), "0x"))
	record, err := hs.state.GetDepositByTxHash(txHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "deposit not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": record})
}

func (hs *HTTPServer) handleBalance(c *gin.Context) {
	account := c.Param("account")
	balance, err := hs.tokenLedger.BalanceOf(account)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "account": account, "balance": balance})
}

func (hs *HTTPServer) handleOraclePush(c *gin.Context) {
	var dto PriceDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	obs := oracle.Observation{
		Price:      dto.Price,
		Confidence: dto.Confidence,
		Exponent:   dto.Exponent,
		Timestamp:  dto.Timestamp,
	}
	// Deviation is measured against the history before this point lands.
	// Advisory only, a flagged price is still recorded.
	deviationExceeded := hs.oracle.DeviationExceeded(dto.Price, config.AppConfig.OracleMaxDeviationBps)
	if deviationExceeded {
		log.Warnf("Price %d deviates more than %d bps from the recent average", dto.Price, config.AppConfig.OracleMaxDeviationBps)
	}
	if err := hs.oracle.Record(obs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hs.state.EventBus.Publish(state.PriceRecorded, obs)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "deviation_exceeded": deviationExceeded})
}

func (hs *HTTPServer) handleOracleLatest(c *gin.Context) {
	obs, err := hs.oracle.LatestFresh(time.Now())
	if err != nil {
		if errors.Is(err, oracle.ErrNoPriceData) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": obs})
}

func (hs *HTTPServer) handleOracleValue(c *gin.Context) {
	amount, err := strconv.ParseUint(c.Query("amount"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount: " + err.Error()})
		return
	}
	value, err := hs.oracle.Value(amount, time.Now())
	if err != nil {
		if errors.Is(err, oracle.ErrNoPriceData) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "amount": amount, "value": value.String()})
}

func (hs *HTTPServer) handleReleases(c *gin.Context) {
	size, err := strconv.Atoi(c.DefaultQuery("size", "50"))
	if err != nil || size < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid size"})
		return
	}
	releases, err := hs.state.GetPendingReleases(size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": releases})
}

// writeOperationError maps the taxonomy to HTTP codes 1:1 so operators can
// tell "need more signatures" from "configuration frozen" at the status line.
func writeOperationError(c *gin.Context, err error) {
	var code int
	switch {
	case errors.Is(err, bridge.ErrBridgePaused):
		code = http.StatusLocked
	case errors.Is(err, bridge.ErrInsufficientQuorum):
		code = http.StatusForbidden
	case errors.Is(err, bridge.ErrAlreadyConsumed),
		errors.Is(err, bridge.ErrAlreadyPaused),
		errors.Is(err, bridge.ErrNotPaused):
		code = http.StatusConflict
	case errors.Is(err, bridge.ErrDailyLimitExceeded):
		code = http.StatusTooManyRequests
	case errors.Is(err, bridge.ErrInsufficientBalance):
		code = http.StatusPaymentRequired
	case errors.Is(err, bridge.ErrCoolingOffNotElapsed):
		code = http.StatusTooEarly
	case errors.Is(err, bridge.ErrInvalidAmount), errors.Is(err, bridge.ErrInvalidConfig):
		code = http.StatusBadRequest
	case errors.Is(err, bridge.ErrNotInitialized):
		code = http.StatusServiceUnavailable
	default:
		code = http.StatusInternalServerError
	}
	c.JSON(code, gin.H{"error": err.Error()})
}
