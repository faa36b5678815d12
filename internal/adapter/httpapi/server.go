package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/example/restaurant-pos/internal/domain"
	"github.com/example/restaurant-pos/internal/logger"
	"github.com/example/restaurant-pos/internal/session"
	"github.com/example/restaurant-pos/internal/usecase"
)

// Options — зависимости HTTP-адаптера. Publisher, Now и Location необязательны.
type Options struct {
	Store     domain.Store
	Publisher domain.ReceiptPublisher
	Now       func() time.Time
	Location  *time.Location
	Log       *slog.Logger
}

type Server struct {
	Router *mux.Router
	log    *slog.Logger

	listTables      usecase.ListTables
	getTable        usecase.GetTable
	openTable       usecase.OpenTable
	addTable        usecase.AddTable
	deleteTable     usecase.DeleteTable
	removeLastTable usecase.RemoveLastTable
	saveOrder       usecase.SaveOrder
	checkout        usecase.Checkout
	listProducts    usecase.ListProducts
	getProduct      func(r *http.Request, id string) (domain.Product, bool, error)
	addProduct      usecase.AddProduct
	updateProduct   usecase.UpdateProduct
	deleteProduct   usecase.DeleteProduct
	menu            usecase.Menu
	categories      usecase.Categories
	history         usecase.OrderHistory
	revenue         usecase.Revenue
}

func NewServer(o Options) *Server {
	log := logger.OrNop(o.Log)
	s := &Server{
		Router: mux.NewRouter(),
		log:    log,

		listTables:      usecase.ListTables{Tables: o.Store},
		getTable:        usecase.GetTable{Tables: o.Store},
		openTable:       usecase.OpenTable{Tables: o.Store},
		addTable:        usecase.AddTable{Tables: o.Store, Log: log},
		deleteTable:     usecase.DeleteTable{Tables: o.Store, Log: log},
		removeLastTable: usecase.RemoveLastTable{Tables: o.Store, Log: log},
		saveOrder:       usecase.SaveOrder{Tables: o.Store, Log: log},
		checkout:        usecase.Checkout{Store: o.Store, Publisher: o.Publisher, Now: o.Now, Log: log},
		listProducts:    usecase.ListProducts{Catalog: o.Store},
		getProduct: func(r *http.Request, id string) (domain.Product, bool, error) {
			return o.Store.GetProduct(r.Context(), id)
		},
		addProduct:    usecase.AddProduct{Catalog: o.Store, Log: log},
		updateProduct: usecase.UpdateProduct{Catalog: o.Store, Log: log},
		deleteProduct: usecase.DeleteProduct{Catalog: o.Store, Log: log},
		menu:          usecase.Menu{Catalog: o.Store},
		categories:    usecase.Categories{Catalog: o.Store},
		history:       usecase.OrderHistory{Ledger: o.Store},
		revenue:       usecase.Revenue{Ledger: o.Store, Now: o.Now, Location: o.Location},
	}

	api := s.Router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tables", s.handleListTables).Methods(http.MethodGet)
	api.HandleFunc("/tables", s.handleAddTable).Methods(http.MethodPost)
	api.HandleFunc("/tables/last", s.handleRemoveLastTable).Methods(http.MethodDelete)
	api.HandleFunc("/tables/{number:[0-9]+}", s.handleGetTable).Methods(http.MethodGet)
	api.HandleFunc("/tables/{number:[0-9]+}", s.handleDeleteTable).Methods(http.MethodDelete)
	api.HandleFunc("/tables/{number:[0-9]+}/order", s.handleSaveOrder).Methods(http.MethodPut)
	api.HandleFunc("/tables/{number:[0-9]+}/checkout", s.handleCheckout).Methods(http.MethodPost)

	api.HandleFunc("/products", s.handleListProducts).Methods(http.MethodGet)
	api.HandleFunc("/products", s.handleAddProduct).Methods(http.MethodPost)
	api.HandleFunc("/products/categories", s.handleCategories).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", s.handleUpdateProduct).Methods(http.MethodPut)
	api.HandleFunc("/products/{id}", s.handleDeleteProduct).Methods(http.MethodDelete)
	api.HandleFunc("/menu", s.handleMenu).Methods(http.MethodGet)

	api.HandleFunc("/orders", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/reports/summary", s.handleSummary).Methods(http.MethodGet)
	return s
}

// tableView — стол вместе с суммой текущего заказа.
type tableView struct {
	domain.Table
	Total decimal.Decimal `json:"total"`
}

func viewOf(t domain.Table) tableView {
	return tableView{Table: t, Total: domain.SumLines(t.PendingOrder)}
}

// MaxLineQuantity — верхняя граница количества в одной позиции запроса.
const MaxLineQuantity = 1000

type orderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type saveOrderRequest struct {
	Items []orderItem `json:"items"`
}

type checkoutRequest struct {
	Total decimal.NullDecimal `json:"total"`
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	ts, err := s.listTables.Execute(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]tableView, 0, len(ts))
	for _, t := range ts {
		out = append(out, viewOf(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddTable(w http.ResponseWriter, r *http.Request) {
	n, err := s.addTable.Execute(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"table_number": n})
}

func (s *Server) handleRemoveLastTable(w http.ResponseWriter, r *http.Request) {
	n, err := s.removeLastTable.Execute(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"table_number": n})
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	n, err := tableNumber(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	t, err := s.getTable.Execute(r.Context(), n)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(t))
}

func (s *Server) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	n, err := tableNumber(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.deleteTable.Execute(r.Context(), n); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSaveOrder заменяет текущий заказ стола позициями из запроса.
func (s *Server) handleSaveOrder(w http.ResponseWriter, r *http.Request) {
	n, err := tableNumber(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req saveOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &domain.ValidationError{Field: "body", Message: err.Error()})
		return
	}
	sess := session.New()
	for _, it := range req.Items {
		if it.Quantity < 1 || it.Quantity > MaxLineQuantity {
			s.writeError(w, &domain.ValidationError{
				Field:   "quantity",
				Message: fmt.Sprintf("must be between 1 and %d", MaxLineQuantity),
			})
			return
		}
		p, ok, err := s.getProduct(r, it.ProductID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if !ok {
			s.writeError(w, domain.ProductNotFound(it.ProductID))
			return
		}
		sess.AddN(p, it.Quantity)
	}
	if err := s.saveOrder.Execute(r.Context(), n, sess); err != nil {
		s.writeError(w, err)
		return
	}
	t, err := s.getTable.Execute(r.Context(), n)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(t))
}

// handleCheckout закрывает сохранённый заказ стола. Без total в запросе берётся сумма заказа.
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	n, err := tableNumber(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, &domain.ValidationError{Field: "body", Message: err.Error()})
		return
	}
	sess, err := s.openTable.Execute(r.Context(), n)
	if err != nil {
		s.writeError(w, err)
		return
	}
	total := sess.Total()
	if req.Total.Valid {
		if req.Total.Decimal.IsNegative() {
			s.writeError(w, &domain.ValidationError{Field: "total", Message: "must not be negative"})
			return
		}
		total = req.Total.Decimal
	}
	o, err := s.checkout.Execute(r.Context(), n, sess, total)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := s.listProducts.Execute(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (s *Server) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeError(w, &domain.ValidationError{Field: "body", Message: err.Error()})
		return
	}
	p, err := s.addProduct.Execute(r.Context(), p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeError(w, &domain.ValidationError{Field: "body", Message: err.Error()})
		return
	}
	p.ID = mux.Vars(r)["id"]
	if err := s.updateProduct.Execute(r.Context(), p); err != nil {
		s.writeError(w, err)
		return
	}
	p, _, err := s.getProduct(r, p.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.deleteProduct.Execute(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	m, err := s.menu.Execute(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := s.categories.Execute(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

// handleHistory: ?from=&to= в RFC 3339, любая граница может отсутствовать.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	var win domain.Window
	for _, b := range []struct {
		param string
		dst   *time.Time
	}{{"from", &win.From}, {"to", &win.To}} {
		v := r.URL.Query().Get(b.param)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, &domain.ValidationError{Field: b.param, Message: "expected RFC 3339 time"})
			return
		}
		*b.dst = t
	}
	entries, err := s.history.Execute(r.Context(), win)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	rep, err := s.revenue.Summary(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func tableNumber(r *http.Request) (int, error) {
	n, err := strconv.Atoi(mux.Vars(r)["number"])
	if err != nil {
		return 0, &domain.ValidationError{Field: "number", Message: "table number must be an integer"}
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит доменные ошибки в HTTP-коды, прочие отдаёт как 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		code = http.StatusBadRequest
	default:
		s.log.Error("request failed", slog.String("action", "http"), slog.Any("error", err))
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
