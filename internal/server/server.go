package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	auditdomain "github.com/easybilling/easybilling/internal/audit/domain"
	"github.com/easybilling/easybilling/internal/config"
	creditnotedomain "github.com/easybilling/easybilling/internal/creditnote/domain"
	customerdomain "github.com/easybilling/easybilling/internal/customer/domain"
	gstdomain "github.com/easybilling/easybilling/internal/gst/domain"
	inventorydomain "github.com/easybilling/easybilling/internal/inventory/domain"
	invoicedomain "github.com/easybilling/easybilling/internal/invoice/domain"
	offerdomain "github.com/easybilling/easybilling/internal/offer/domain"
	productdomain "github.com/easybilling/easybilling/internal/product/domain"
	quotedomain "github.com/easybilling/easybilling/internal/quote/domain"
	recurringdomain "github.com/easybilling/easybilling/internal/recurring/domain"
	securitygroupdomain "github.com/easybilling/easybilling/internal/securitygroup/domain"
	supplierdomain "github.com/easybilling/easybilling/internal/supplier/domain"
	tenantdomain "github.com/easybilling/easybilling/internal/tenant/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

// NewEngine builds the gin engine with the shared middleware chain and the
// operational endpoints.
func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger

	tenantSvc        tenantdomain.Service
	customerSvc      customerdomain.Service
	supplierSvc      supplierdomain.Service
	productSvc       productdomain.Service
	gstSvc           gstdomain.Service
	offerSvc         offerdomain.Service
	inventorySvc     inventorydomain.Service
	invoiceSvc       invoicedomain.Service
	quoteSvc         quotedomain.Service
	recurringSvc     recurringdomain.Service
	creditNoteSvc    creditnotedomain.Service
	securityGroupSvc securitygroupdomain.Service
	auditSvc         auditdomain.Service
}

type ServerParams struct {
	fx.In

	Gin *gin.Engine
	Cfg config.Config
	Log *zap.Logger

	TenantSvc        tenantdomain.Service
	CustomerSvc      customerdomain.Service
	SupplierSvc      supplierdomain.Service
	ProductSvc       productdomain.Service
	GstSvc           gstdomain.Service
	OfferSvc         offerdomain.Service
	InventorySvc     inventorydomain.Service
	InvoiceSvc       invoicedomain.Service
	QuoteSvc         quotedomain.Service
	RecurringSvc     recurringdomain.Service
	CreditNoteSvc    creditnotedomain.Service
	SecurityGroupSvc securitygroupdomain.Service
	AuditSvc         auditdomain.Service
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:           p.Gin,
		cfg:              p.Cfg,
		log:              p.Log.Named("server"),
		tenantSvc:        p.TenantSvc,
		customerSvc:      p.CustomerSvc,
		supplierSvc:      p.SupplierSvc,
		productSvc:       p.ProductSvc,
		gstSvc:           p.GstSvc,
		offerSvc:         p.OfferSvc,
		inventorySvc:     p.InventorySvc,
		invoiceSvc:       p.InvoiceSvc,
		quoteSvc:         p.QuoteSvc,
		recurringSvc:     p.RecurringSvc,
		creditNoteSvc:    p.CreditNoteSvc,
		securityGroupSvc: p.SecurityGroupSvc,
		auditSvc:         p.AuditSvc,
	}
}

func registerRoutes(s *Server) {
	s.RegisterAPIRoutes()
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// RegisterAPIRoutes mounts every /api/v1 route group. Tenant bootstrap
// endpoints are the only ones reachable without an X-Tenant-ID header.
func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api/v1")
	api.Use(s.TenantContext())

	// -------- Tenants --------
	api.POST("/tenants", s.CreateTenant)
	api.GET("/tenants", s.ListTenants)
	api.GET("/tenants/:id", s.GetTenantByID)

	tenant := api.Group("", s.TenantRequired())

	// -------- Tenant configuration --------
	tenant.GET("/tenant/configs", s.authorize(securitygroupdomain.PermTenantManage), s.ListTenantConfigs)
	tenant.POST("/tenant/configs", s.authorize(securitygroupdomain.PermTenantManage), s.SetTenantConfig)
	tenant.PUT("/tenant/configs/:key", s.authorize(securitygroupdomain.PermTenantManage), s.UpdateTenantConfig)
	tenant.GET("/tenant/configs/:key", s.authorize(securitygroupdomain.PermTenantManage), s.GetTenantConfig)
	tenant.DELETE("/tenant/configs/:key", s.authorize(securitygroupdomain.PermTenantManage), s.DeleteTenantConfig)

	// -------- Customers --------
	tenant.GET("/customers", s.authorize(securitygroupdomain.PermCustomerView), s.ListCustomers)
	tenant.POST("/customers", s.authorize(securitygroupdomain.PermCustomerCreate), s.CreateCustomer)
	tenant.GET("/customers/:id", s.authorize(securitygroupdomain.PermCustomerView), s.GetCustomerByID)

	// -------- Suppliers --------
	tenant.GET("/suppliers", s.authorize(securitygroupdomain.PermCustomerView), s.ListSuppliers)
	tenant.POST("/suppliers", s.authorize(securitygroupdomain.PermCustomerCreate), s.CreateSupplier)
	tenant.GET("/suppliers/:id", s.authorize(securitygroupdomain.PermCustomerView), s.GetSupplierByID)
	tenant.DELETE("/suppliers/:id", s.authorize(securitygroupdomain.PermCustomerCreate), s.DeleteSupplier)

	// -------- Products --------
	tenant.GET("/products", s.authorize(securitygroupdomain.PermProductView), s.ListProducts)
	tenant.POST("/products", s.authorize(securitygroupdomain.PermProductCreate), s.CreateProduct)
	tenant.GET("/products/:id", s.authorize(securitygroupdomain.PermProductView), s.GetProductByID)
	tenant.POST("/products/:id/deactivate", s.authorize(securitygroupdomain.PermProductCreate), s.DeactivateProduct)
	tenant.GET("/categories", s.authorize(securitygroupdomain.PermProductView), s.ListCategories)
	tenant.POST("/categories", s.authorize(securitygroupdomain.PermProductCreate), s.CreateCategory)

	// -------- GST rates --------
	tenant.GET("/gst/rates", s.authorize(securitygroupdomain.PermGstManage), s.ListGstRates)
	tenant.POST("/gst/rates", s.authorize(securitygroupdomain.PermGstManage), s.CreateGstRate)
	tenant.DELETE("/gst/rates/:id", s.authorize(securitygroupdomain.PermGstManage), s.DeleteGstRate)
	tenant.POST("/gst/calculate", s.authorize(securitygroupdomain.PermGstManage), s.CalculateGst)

	// -------- Offers --------
	tenant.GET("/offers", s.authorize(securitygroupdomain.PermOfferView), s.ListOffers)
	tenant.POST("/offers", s.authorize(securitygroupdomain.PermOfferCreate), s.CreateOffer)
	tenant.GET("/offers/:id", s.authorize(securitygroupdomain.PermOfferView), s.GetOfferByID)
	tenant.POST("/offers/:id/deactivate", s.authorize(securitygroupdomain.PermOfferCreate), s.DeactivateOffer)
	tenant.POST("/offers/best", s.authorize(securitygroupdomain.PermOfferView), s.BestOffers)
	tenant.POST("/offers/:id/apply", s.authorize(securitygroupdomain.PermOfferCreate), s.ApplyOffer)

	// -------- Inventory --------
	tenant.GET("/inventory/levels", s.authorize(securitygroupdomain.PermInventoryView), s.GetStockLevel)
	tenant.GET("/inventory/movements", s.authorize(securitygroupdomain.PermInventoryView), s.ListStockMovements)
	tenant.POST("/inventory/adjust", s.authorize(securitygroupdomain.PermInventoryAdjust), s.AdjustStock)

	// -------- Invoices --------
	tenant.GET("/invoices", s.authorize(securitygroupdomain.PermInvoiceView), s.ListInvoices)
	tenant.POST("/invoices", s.authorize(securitygroupdomain.PermInvoiceCreate), s.CreateInvoice)
	tenant.GET("/invoices/:id", s.authorize(securitygroupdomain.PermInvoiceView), s.GetInvoiceByID)
	tenant.POST("/invoices/:id/complete", s.authorize(securitygroupdomain.PermInvoiceComplete), s.CompleteInvoice)
	tenant.POST("/invoices/:id/cancel", s.authorize(securitygroupdomain.PermInvoiceCancel), s.CancelInvoice)
	tenant.POST("/invoices/:id/return", s.authorize(securitygroupdomain.PermInvoiceReturn), s.ReturnInvoice)
	tenant.POST("/invoices/hold", s.authorize(securitygroupdomain.PermInvoiceCreate), s.HoldInvoice)
	tenant.GET("/invoices/hold/:ref", s.authorize(securitygroupdomain.PermInvoiceCreate), s.ResumeInvoice)
	tenant.DELETE("/invoices/hold/:ref", s.authorize(securitygroupdomain.PermInvoiceCreate), s.DeleteHeldInvoice)

	// -------- Quotes --------
	tenant.GET("/quotes", s.authorize(securitygroupdomain.PermQuoteView), s.ListQuotes)
	tenant.POST("/quotes", s.authorize(securitygroupdomain.PermQuoteCreate), s.CreateQuote)
	tenant.GET("/quotes/:id", s.authorize(securitygroupdomain.PermQuoteView), s.GetQuoteByID)
	tenant.POST("/quotes/:id/send", s.authorize(securitygroupdomain.PermQuoteCreate), s.MarkQuoteSent)
	tenant.POST("/quotes/:id/accept", s.authorize(securitygroupdomain.PermQuoteAccept), s.AcceptQuote)

	// -------- Recurring schedules --------
	tenant.GET("/recurring", s.authorize(securitygroupdomain.PermRecurringManage), s.ListSchedules)
	tenant.POST("/recurring", s.authorize(securitygroupdomain.PermRecurringManage), s.CreateSchedule)
	tenant.GET("/recurring/:id", s.authorize(securitygroupdomain.PermRecurringManage), s.GetScheduleByID)
	tenant.POST("/recurring/:id/deactivate", s.authorize(securitygroupdomain.PermRecurringManage), s.DeactivateSchedule)

	// -------- Credit notes --------
	tenant.GET("/credit-notes", s.authorize(securitygroupdomain.PermCreditNoteView), s.ListCreditNotes)
	tenant.POST("/credit-notes", s.authorize(securitygroupdomain.PermCreditNoteCreate), s.CreateCreditNote)
	tenant.GET("/credit-notes/:id", s.authorize(securitygroupdomain.PermCreditNoteView), s.GetCreditNoteByID)
	tenant.POST("/credit-notes/:id/submit", s.authorize(securitygroupdomain.PermCreditNoteCreate), s.SubmitCreditNote)
	tenant.POST("/credit-notes/:id/approve", s.authorize(securitygroupdomain.PermCreditNoteApprove), s.ApproveCreditNote)
	tenant.POST("/credit-notes/:id/issue", s.authorize(securitygroupdomain.PermCreditNoteIssue), s.IssueCreditNote)
	tenant.POST("/credit-notes/:id/apply", s.authorize(securitygroupdomain.PermCreditNoteApply), s.ApplyCreditNote)
	tenant.POST("/credit-notes/:id/cancel", s.authorize(securitygroupdomain.PermCreditNoteCreate), s.CancelCreditNote)

	// -------- Security groups --------
	tenant.GET("/security-groups", s.authorize(securitygroupdomain.PermGroupManage), s.ListSecurityGroups)
	tenant.POST("/security-groups", s.authorize(securitygroupdomain.PermGroupManage), s.CreateSecurityGroup)
	tenant.PUT("/security-groups/:id/permissions", s.authorize(securitygroupdomain.PermGroupManage), s.UpdateSecurityGroupPermissions)
	tenant.DELETE("/security-groups/:id", s.authorize(securitygroupdomain.PermGroupManage), s.DeleteSecurityGroup)
	tenant.POST("/security-groups/:id/users", s.authorize(securitygroupdomain.PermGroupManage), s.AssignUserToGroup)
	tenant.DELETE("/security-groups/:id/users/:userId", s.authorize(securitygroupdomain.PermGroupManage), s.UnassignUserFromGroup)
	tenant.GET("/users/:userId/security-groups", s.authorize(securitygroupdomain.PermGroupManage), s.ListUserSecurityGroups)

	// -------- Audit log --------
	tenant.GET("/audit-logs", s.authorize(securitygroupdomain.PermTenantManage), s.ListAuditLogs)
}
