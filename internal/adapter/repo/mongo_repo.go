package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/restaurant-pos/internal/domain"
)

// Документы Mongo. Деньги хранятся в Decimal128.
type snapshotDoc struct {
	ID    string               `bson:"id"`
	Name  string               `bson:"name"`
	Price primitive.Decimal128 `bson:"price"`
}

type lineDoc struct {
	Product  snapshotDoc          `bson:"product"`
	Quantity int                  `bson:"quantity"`
	Total    primitive.Decimal128 `bson:"total"`
}

type orderDoc struct {
	ID          string               `bson:"_id"`
	TableNumber int                  `bson:"table_number"`
	Items       []lineDoc            `bson:"items"`
	Total       primitive.Decimal128 `bson:"total"`
	Date        time.Time            `bson:"date"`
	Status      string               `bson:"status"`
}

type tableDoc struct {
	Number          int       `bson:"table_number"`
	Status          string    `bson:"status"`
	CurrentOrder    []lineDoc `bson:"current_order"`
	PendingCheckout *orderDoc `bson:"pending_checkout,omitempty"`
}

type productDoc struct {
	ID       string               `bson:"_id"`
	Name     string               `bson:"name"`
	Price    primitive.Decimal128 `bson:"price"`
	Category string               `bson:"category"`
}

func toD128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode amount %s: %w", d, err)
	}
	return v, nil
}

func fromD128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode amount %s: %w", v, err)
	}
	return d, nil
}

func linesToDocs(lines []domain.OrderLine) ([]lineDoc, error) {
	out := make([]lineDoc, 0, len(lines))
	for _, l := range lines {
		price, err := toD128(l.Product.Price)
		if err != nil {
			return nil, err
		}
		total, err := toD128(l.LineTotal)
		if err != nil {
			return nil, err
		}
		out = append(out, lineDoc{
			Product:  snapshotDoc{ID: l.Product.ID, Name: l.Product.Name, Price: price},
			Quantity: l.Quantity,
			Total:    total,
		})
	}
	return out, nil
}

func docsToLines(docs []lineDoc) ([]domain.OrderLine, error) {
	out := make([]domain.OrderLine, 0, len(docs))
	for _, d := range docs {
		price, err := fromD128(d.Product.Price)
		if err != nil {
			return nil, err
		}
		total, err := fromD128(d.Total)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.OrderLine{
			Product:   domain.ProductSnapshot{ID: d.Product.ID, Name: d.Product.Name, Price: price},
			Quantity:  d.Quantity,
			LineTotal: total,
		})
	}
	return out, nil
}

func (d tableDoc) toDomain() (domain.Table, error) {
	lines, err := docsToLines(d.CurrentOrder)
	if err != nil {
		return domain.Table{}, err
	}
	return domain.Table{Number: d.Number, Status: domain.TableStatus(d.Status), PendingOrder: lines}, nil
}

func newOrderDoc(o domain.ArchivedOrder) (orderDoc, error) {
	items, err := linesToDocs(o.Items)
	if err != nil {
		return orderDoc{}, err
	}
	total, err := toD128(o.Total)
	if err != nil {
		return orderDoc{}, err
	}
	return orderDoc{
		ID:          o.ID,
		TableNumber: o.TableNumber,
		Items:       items,
		Total:       total,
		Date:        o.CompletedAt,
		Status:      string(o.Status),
	}, nil
}

func (d orderDoc) toDomain() (domain.ArchivedOrder, error) {
	items, err := docsToLines(d.Items)
	if err != nil {
		return domain.ArchivedOrder{}, err
	}
	total, err := fromD128(d.Total)
	if err != nil {
		return domain.ArchivedOrder{}, err
	}
	return domain.ArchivedOrder{
		ID:          d.ID,
		TableNumber: d.TableNumber,
		Items:       items,
		Total:       total,
		CompletedAt: d.Date,
		Status:      domain.OrderStatus(d.Status),
	}, nil
}

func newProductDoc(p domain.Product) (productDoc, error) {
	price, err := toD128(p.Price)
	if err != nil {
		return productDoc{}, err
	}
	return productDoc{ID: p.ID, Name: p.Name, Price: price, Category: p.Category}, nil
}

func (d productDoc) toDomain() (domain.Product, error) {
	price, err := fromD128(d.Price)
	if err != nil {
		return domain.Product{}, err
	}
	return domain.Product{ID: d.ID, Name: d.Name, Price: price, Category: d.Category}, nil
}

// MongoStore — хранилище в коллекциях tables, products, orders.
//
// Закрытие заказа не использует транзакции (standalone mongod их не поддерживает):
// сначала заказ записывается в pending_checkout документа стола, затем в журнал,
// затем стол очищается. Recover доводит до конца прерванные закрытия.
type MongoStore struct {
	Client   *mongo.Client
	tables   *mongo.Collection
	products *mongo.Collection
	orders   *mongo.Collection
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		Client:   client,
		tables:   db.Collection("tables"),
		products: db.Collection("products"),
		orders:   db.Collection("orders"),
	}
}

// EnsureIndexes — уникальный номер стола и индекс журнала по дате.
func (r *MongoStore) EnsureIndexes(ctx context.Context) error {
	if _, err := r.tables.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "table_number", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("tables index: %w", err)
	}
	if _, err := r.orders.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: -1}},
	}); err != nil {
		return fmt.Errorf("orders index: %w", err)
	}
	return nil
}

func (r *MongoStore) ListTables(ctx context.Context) ([]domain.Table, error) {
	cur, err := r.tables.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "table_number", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var docs []tableDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	out := make([]domain.Table, 0, len(docs))
	for _, d := range docs {
		t, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *MongoStore) findTable(ctx context.Context, number int) (tableDoc, bool, error) {
	var d tableDoc
	err := r.tables.FindOne(ctx, bson.M{"table_number": number}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return tableDoc{}, false, nil
	}
	if err != nil {
		return tableDoc{}, false, fmt.Errorf("get table %d: %w", number, err)
	}
	return d, true, nil
}

func (r *MongoStore) GetTable(ctx context.Context, number int) (domain.Table, bool, error) {
	d, ok, err := r.findTable(ctx, number)
	if err != nil || !ok {
		return domain.Table{}, ok, err
	}
	t, err := d.toDomain()
	if err != nil {
		return domain.Table{}, false, err
	}
	return t, true, nil
}

// AddTable повторяет вставку, если параллельный вызов занял тот же номер.
func (r *MongoStore) AddTable(ctx context.Context) (int, error) {
	for attempt := 0; attempt < txnRetries; attempt++ {
		var last tableDoc
		next := 1
		err := r.tables.FindOne(ctx, bson.D{},
			options.FindOne().SetSort(bson.D{{Key: "table_number", Value: -1}})).Decode(&last)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
		case err != nil:
			return 0, fmt.Errorf("add table: %w", err)
		default:
			next = last.Number + 1
		}
		_, err = r.tables.InsertOne(ctx, tableDoc{Number: next, Status: string(domain.TableEmpty), CurrentOrder: []lineDoc{}})
		if mongo.IsDuplicateKeyError(err) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("add table: %w", err)
		}
		return next, nil
	}
	return 0, &domain.ConflictError{Entity: "table", Key: "next", Reason: "concurrent table creation, retry"}
}

func (r *MongoStore) DeleteTable(ctx context.Context, number int) error {
	res, err := r.tables.DeleteOne(ctx, bson.M{
		"table_number": number,
		"status":       bson.M{"$ne": string(domain.TableOccupied)},
	})
	if err != nil {
		return fmt.Errorf("delete table %d: %w", number, err)
	}
	if res.DeletedCount == 1 {
		return nil
	}
	_, ok, err := r.findTable(ctx, number)
	if err != nil {
		return err
	}
	if !ok {
		return domain.TableNotFound(number)
	}
	return domain.OccupiedTableError(number)
}

func (r *MongoStore) setTable(ctx context.Context, number int, set bson.M) error {
	res, err := r.tables.UpdateOne(ctx, bson.M{"table_number": number}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update table %d: %w", number, err)
	}
	if res.MatchedCount == 0 {
		return domain.TableNotFound(number)
	}
	return nil
}

func (r *MongoStore) SetStatus(ctx context.Context, number int, status domain.TableStatus) error {
	return r.setTable(ctx, number, bson.M{"status": string(status)})
}

func (r *MongoStore) SavePendingOrder(ctx context.Context, number int, items []domain.OrderLine) error {
	docs, err := linesToDocs(items)
	if err != nil {
		return err
	}
	return r.setTable(ctx, number, bson.M{"current_order": docs, "status": string(domain.TableOccupied)})
}

func (r *MongoStore) ClearAndEmpty(ctx context.Context, number int) error {
	return r.setTable(ctx, number, bson.M{"current_order": []lineDoc{}, "status": string(domain.TableEmpty)})
}

func (r *MongoStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	cur, err := r.products.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		p, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *MongoStore) GetProduct(ctx context.Context, id string) (domain.Product, bool, error) {
	var d productDoc
	err := r.products.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Product{}, false, nil
	}
	if err != nil {
		return domain.Product{}, false, fmt.Errorf("get product %s: %w", id, err)
	}
	p, err := d.toDomain()
	if err != nil {
		return domain.Product{}, false, err
	}
	return p, true, nil
}

func (r *MongoStore) AddProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.ID = uuid.NewString()
	d, err := newProductDoc(p)
	if err != nil {
		return domain.Product{}, err
	}
	if _, err := r.products.InsertOne(ctx, d); err != nil {
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

func (r *MongoStore) UpdateProduct(ctx context.Context, p domain.Product) error {
	d, err := newProductDoc(p)
	if err != nil {
		return err
	}
	res, err := r.products.ReplaceOne(ctx, bson.M{"_id": p.ID}, d)
	if err != nil {
		return fmt.Errorf("update product %s: %w", p.ID, err)
	}
	if res.MatchedCount == 0 {
		return domain.ProductNotFound(p.ID)
	}
	return nil
}

func (r *MongoStore) DeleteProduct(ctx context.Context, id string) error {
	if _, err := r.products.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	return nil
}

// insertOrder идемпотентна: повтор того же _id не считается ошибкой.
func (r *MongoStore) insertOrder(ctx context.Context, d orderDoc) error {
	_, err := r.orders.InsertOne(ctx, d)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("archive order %s: %w", d.ID, err)
	}
	return nil
}

func (r *MongoStore) Append(ctx context.Context, o domain.ArchivedOrder) error {
	if err := domain.ValidateArchived(o); err != nil {
		return err
	}
	d, err := newOrderDoc(o)
	if err != nil {
		return err
	}
	return r.insertOrder(ctx, d)
}

func windowFilter(w domain.Window) bson.M {
	f := bson.M{}
	date := bson.M{}
	if !w.From.IsZero() {
		date["$gte"] = w.From
	}
	if !w.To.IsZero() {
		date["$lt"] = w.To
	}
	if len(date) > 0 {
		f["date"] = date
	}
	return f
}

func (r *MongoStore) ListOrders(ctx context.Context, w domain.Window) ([]domain.ArchivedOrder, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.orders.Find(ctx, windowFilter(w), opts)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]domain.ArchivedOrder, 0, len(docs))
	for _, d := range docs {
		o, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// Summarize считает выручку агрегацией $group по Decimal128.
func (r *MongoStore) Summarize(ctx context.Context, w domain.Window) (domain.Summary, error) {
	match := windowFilter(w)
	match["status"] = string(domain.OrderCompleted)
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "revenue", Value: bson.M{"$sum": "$total"}},
			{Key: "count", Value: bson.M{"$sum": 1}},
		}}},
	}
	cur, err := r.orders.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("summarize orders: %w", err)
	}
	var rows []struct {
		Revenue primitive.Decimal128 `bson:"revenue"`
		Count   int                  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return domain.Summary{}, fmt.Errorf("summarize orders: %w", err)
	}
	if len(rows) == 0 {
		return domain.Summary{Revenue: decimal.Zero}, nil
	}
	revenue, err := fromD128(rows[0].Revenue)
	if err != nil {
		return domain.Summary{}, err
	}
	return domain.Summary{Revenue: revenue, Count: rows[0].Count}, nil
}

func (r *MongoStore) Checkout(ctx context.Context, number int, o domain.ArchivedOrder) error {
	if err := domain.ValidateArchived(o); err != nil {
		return err
	}
	d, err := newOrderDoc(o)
	if err != nil {
		return err
	}
	res, err := r.tables.UpdateOne(ctx,
		bson.M{
			"table_number":     number,
			"status":           string(domain.TableOccupied),
			"pending_checkout": bson.M{"$exists": false},
		},
		bson.M{"$set": bson.M{"pending_checkout": d}})
	if err != nil {
		return fmt.Errorf("checkout table %d: %w", number, err)
	}
	if res.MatchedCount == 0 {
		t, ok, err := r.findTable(ctx, number)
		if err != nil {
			return err
		}
		if !ok {
			return domain.TableNotFound(number)
		}
		// прерванное закрытие доводится до конца; новое намерение его не заменяет
		if t.PendingCheckout != nil {
			if err := r.finishCheckout(ctx, number, *t.PendingCheckout); err != nil {
				return err
			}
			return domain.CheckoutReplayed(number, t.PendingCheckout.ID)
		}
		return domain.TableNotOccupied(number)
	}
	return r.finishCheckout(ctx, number, d)
}

// finishCheckout — шаги после записи намерения; безопасно повторять.
func (r *MongoStore) finishCheckout(ctx context.Context, number int, d orderDoc) error {
	if err := r.insertOrder(ctx, d); err != nil {
		return err
	}
	_, err := r.tables.UpdateOne(ctx,
		bson.M{"table_number": number, "pending_checkout._id": d.ID},
		bson.M{
			"$set":   bson.M{"status": string(domain.TableEmpty), "current_order": []lineDoc{}},
			"$unset": bson.M{"pending_checkout": ""},
		})
	if err != nil {
		return fmt.Errorf("clear table %d: %w", number, err)
	}
	return nil
}

// Recover завершает закрытия, прерванные после записи pending_checkout. Возвращает их число.
func (r *MongoStore) Recover(ctx context.Context) (int, error) {
	cur, err := r.tables.Find(ctx, bson.M{"pending_checkout": bson.M{"$exists": true}})
	if err != nil {
		return 0, fmt.Errorf("find pending checkouts: %w", err)
	}
	var docs []tableDoc
	if err := cur.All(ctx, &docs); err != nil {
		return 0, fmt.Errorf("find pending checkouts: %w", err)
	}
	n := 0
	for _, t := range docs {
		if t.PendingCheckout == nil {
			continue
		}
		if err := r.finishCheckout(ctx, t.Number, *t.PendingCheckout); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (r *MongoStore) Close(ctx context.Context) error {
	return r.Client.Disconnect(ctx)
}

var _ domain.Store = (*MongoStore)(nil)
