// Package api serves a read-only HTTP view of the exchange: live pool,
// treasury and system state from the ledger, and committed history from
// the storage repository.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"github.com/lugondev/fixed-ratio-trading/internal/client"
	"github.com/lugondev/fixed-ratio-trading/internal/common"
	"github.com/lugondev/fixed-ratio-trading/internal/pda"
	"github.com/lugondev/fixed-ratio-trading/internal/storage"
)

const defaultPageSize = 50

type Server struct {
	common.LoggerMixin
	client     *client.Client
	repo       storage.Repository
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer wires the routes. repo may be nil, in which case the history
// routes answer 503.
func NewServer(c *client.Client, repo storage.Repository) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		LoggerMixin: common.NewLoggerMixin(),
		client:      c,
		repo:        repo,
		router:      gin.New(),
	}
	s.router.Use(gin.Recovery(), s.requestLogger())

	s.router.GET("/health", s.health)
	s.router.GET("/pools", s.listPools)
	s.router.GET("/pools/:address", s.getPool)
	s.router.GET("/pools/:address/quote", s.quote)
	s.router.GET("/treasury", s.getTreasury)
	s.router.GET("/system", s.getSystem)

	history := s.router.Group("/", s.requireRepository)
	history.GET("/accounts/:address", s.getAccount)
	history.GET("/accounts/:address/transactions", s.accountTransactions)
	history.GET("/transactions", s.recentTransactions)
	history.GET("/transactions/:signature", s.getTransaction)
	history.GET("/failures", s.failedTransactions)
	history.GET("/events", s.eventsByName)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr in the background.
func (s *Server) Start(addr string) {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.GetLogger().Info("api listening", "addr", addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.GetLogger().Error("api server stopped", "error", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.GetLogger().Debug("api request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) requireRepository(c *gin.Context) {
	if s.repo == nil {
		abort(c, http.StatusServiceUnavailable, "storage is disabled")
	}
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func pubkeyParam(c *gin.Context, name string) (solana.PublicKey, bool) {
	key, err := solana.PublicKeyFromBase58(c.Param(name))
	if err != nil {
		abort(c, http.StatusBadRequest, "invalid "+name+": "+err.Error())
		return solana.PublicKey{}, false
	}
	return key, true
}

// paging reads limit and offset query parameters.
func paging(c *gin.Context) (limit, offset int, ok bool) {
	limit, offset = defaultPageSize, 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			abort(c, http.StatusBadRequest, "limit must be a positive integer")
			return 0, 0, false
		}
		limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			abort(c, http.StatusBadRequest, "offset must be a non-negative integer")
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

func (s *Server) health(c *gin.Context) {
	clock := s.client.Bank().Clock()
	body := gin.H{
		"status":         "ok",
		"program_id":     s.client.ProgramID(),
		"slot":           clock.Slot,
		"unix_timestamp": clock.UnixTimestamp,
	}
	if s.repo != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.repo.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["storage_error"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) listPools(c *gin.Context) {
	pools := s.client.Pools()
	out := make([]poolView, 0, len(pools))
	for addr, p := range pools {
		out = append(out, newPoolView(addr, p))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getPool(c *gin.Context) {
	addr, ok := pubkeyParam(c, "address")
	if !ok {
		return
	}
	p, err := s.client.Pool(addr)
	if err != nil {
		abort(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, newPoolView(addr, p))
}

func (s *Server) quote(c *gin.Context) {
	addr, ok := pubkeyParam(c, "address")
	if !ok {
		return
	}
	mint, err := solana.PublicKeyFromBase58(c.Query("input_mint"))
	if err != nil {
		abort(c, http.StatusBadRequest, "invalid input_mint")
		return
	}
	amount, err := strconv.ParseUint(c.Query("amount"), 10, 64)
	if err != nil {
		abort(c, http.StatusBadRequest, "invalid amount")
		return
	}
	q, err := s.client.QuoteSwap(addr, mint, amount)
	if err != nil {
		abort(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"amount_in":  q.AmountIn,
		"gross":      q.Gross,
		"fee":        q.Fee,
		"amount_out": q.AmountOut,
	})
}

func (s *Server) getTreasury(c *gin.Context) {
	t, err := s.client.Treasury()
	if err != nil {
		abort(c, http.StatusNotFound, err.Error())
		return
	}
	addr, _ := pda.FindMainTreasury(s.client.ProgramID())
	c.JSON(http.StatusOK, newTreasuryView(addr.Key, t))
}

func (s *Server) getSystem(c *gin.Context) {
	st, err := s.client.SystemState()
	if err != nil {
		abort(c, http.StatusNotFound, err.Error())
		return
	}
	addr, _ := pda.FindSystemState(s.client.ProgramID())
	c.JSON(http.StatusOK, systemView{
		Address:         addr.Key,
		IsPaused:        st.IsPaused,
		PauseReasonCode: st.PauseReasonCode,
		PauseTimestamp:  st.PauseTimestamp,
	})
}

func (s *Server) getAccount(c *gin.Context) {
	addr, ok := pubkeyParam(c, "address")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	acct, err := s.repo.Accounts().FindByPubkey(ctx, addr.String())
	if err != nil {
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	if acct == nil {
		abort(c, http.StatusNotFound, "account not found")
		return
	}
	body := gin.H{"account": acct}
	tokenAcct, err := s.repo.TokenAccounts().FindByAddress(ctx, addr.String())
	if err != nil {
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	if tokenAcct != nil {
		body["token_account"] = tokenAcct
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) accountTransactions(c *gin.Context) {
	addr, ok := pubkeyParam(c, "address")
	if !ok {
		return
	}
	limit, offset, ok := paging(c)
	if !ok {
		return
	}
	txs, err := s.repo.Transactions().FindByAccountKey(c.Request.Context(), addr.String(), limit, offset)
	if err != nil {
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, nonNil(txs))
}

func (s *Server) recentTransactions(c *gin.Context) {
	limit, _, ok := paging(c)
	if !ok {
		return
	}
	txs, err := s.repo.Transactions().FindRecent(c.Request.Context(), limit)
	if err != nil {
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, nonNil(txs))
}

// failedTransactions lists rejected transactions; ?code= narrows them to
// one custom program error.
func (s *Server) failedTransactions(c *gin.Context) {
	limit, offset, ok := paging(c)
	if !ok {
		return
	}
	var code *uint32
	if v := c.Query("code"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			abort(c, http.StatusBadRequest, "code must be an unsigned integer")
			return
		}
		c32 := uint32(n)
		code = &c32
	}
	txs, err := s.repo.Transactions().FindFailed(c.Request.Context(), code, limit, offset)
	if err != nil {
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, nonNil(txs))
}

func (s *Server) getTransaction(c *gin.Context) {
	sig := c.Param("signature")
	if _, err := solana.SignatureFromBase58(sig); err != nil {
		abort(c, http.StatusBadRequest, "invalid signature")
		return
	}
	ctx := c.Request.Context()
	tx, err := s.repo.Transactions().FindBySignature(ctx, sig)
	if err != nil {
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	if tx == nil {
		abort(c, http.StatusNotFound, "transaction not found")
		return
	}
	instructions, err := s.repo.Instructions().FindBySignature(ctx, sig)
	if err != nil {
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	events, err := s.repo.Events().FindBySignature(ctx, sig)
	if err != nil {
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transaction":  tx,
		"instructions": nonNil(instructions),
		"events":       nonNil(events),
	})
}

func (s *Server) eventsByName(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		abort(c, http.StatusBadRequest, "name is required")
		return
	}
	limit, offset, ok := paging(c)
	if !ok {
		return
	}
	events, err := s.repo.Events().FindByEventName(c.Request.Context(), name, limit, offset)
	if err != nil {
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, nonNil(events))
}

// nonNil renders an empty result as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
