// internal/domain/cart/service.go
package cart

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/ticketing-backend/internal/config"
	"github.com/your-org/ticketing-backend/internal/domain/event"
	"github.com/your-org/ticketing-backend/internal/domain/reservation"
	"github.com/your-org/ticketing-backend/internal/pkg/apperror"
	"gorm.io/gorm"
)

// SeatReserver places and releases seat holds on behalf of the cart.
type SeatReserver interface {
	ReserveSeats(eventID uint, seatLabels []string, owner reservation.Owner) (*reservation.SeatReservation, error)
	ReleaseReservation(reservationID string, owner reservation.Owner) error
}

// Service handles shopping cart business logic
type Service struct {
	db       *gorm.DB
	config   *config.Config
	logger   *logrus.Logger
	reserver SeatReserver
	now      func() time.Time
}

// NewService creates a new cart service
func NewService(db *gorm.DB, cfg *config.Config, logger *logrus.Logger, reserver SeatReserver) *Service {
	return &Service{
		db:       db,
		config:   cfg,
		logger:   logger,
		reserver: reserver,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AddItemRequest represents an add to cart request
type AddItemRequest struct {
	ItemType   ItemType               `json:"item_type" binding:"required"`
	EventID    *uint                  `json:"event_id"`
	ItemRefID  string                 `json:"item_ref_id"`
	ItemTitle  string                 `json:"item_title"`
	TicketType string                 `json:"ticket_type"`
	Quantity   int                    `json:"quantity" binding:"required,min=1"`
	UnitPrice  *decimal.Decimal       `json:"unit_price"`
	SeatIDs    []string               `json:"seat_ids"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// ItemView is a cart item with its JSON columns decoded
type ItemView struct {
	ID            string                 `json:"id"`
	ItemType      ItemType               `json:"item_type"`
	EventID       *uint                  `json:"event_id,omitempty"`
	ItemRefID     string                 `json:"item_ref_id,omitempty"`
	Title         string                 `json:"title"`
	TicketType    string                 `json:"ticket_type,omitempty"`
	Quantity      int                    `json:"quantity"`
	UnitPrice     decimal.Decimal        `json:"unit_price"`
	TotalPrice    decimal.Decimal        `json:"total_price"`
	SeatNumbers   []string               `json:"seat_numbers,omitempty"`
	ReservationID string                 `json:"reservation_id,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// CartView is a cart with decoded items and totals
type CartView struct {
	ID                 string          `json:"id"`
	UserID             *uint           `json:"user_id,omitempty"`
	IsGuest            bool            `json:"is_guest"`
	Status             CartStatus      `json:"status"`
	Items              []ItemView      `json:"items"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	DiscountCode       string          `json:"discount_code,omitempty"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	ExpiresAt          *time.Time      `json:"expires_at,omitempty"`
}

// CreateGuestCart creates an anonymous cart with a guest TTL. The returned
// cart id is the guest's handle for all later cart and checkout calls.
func (s *Service) CreateGuestCart() (*Cart, error) {
	expires := s.now().Add(s.config.Checkout.GuestCartTTL)
	c := &Cart{
		ID:        uuid.New().String(),
		IsGuest:   true,
		Status:    StatusActive,
		ExpiresAt: &expires,
	}
	if err := s.db.Create(c).Error; err != nil {
		return nil, apperror.Internal(fmt.Errorf("create guest cart: %w", err))
	}
	return c, nil
}

// AddItem adds an item to the owner's cart, creating a user cart lazily.
// Event items with seat ids place a seat hold before the row is written.
func (s *Service) AddItem(ref Ref, req *AddItemRequest) (*CartView, error) {
	if !req.ItemType.Valid() {
		return nil, apperror.New(apperror.CodeValidationFailed, "unknown item type").
			WithDetail("item_type", string(req.ItemType))
	}
	if req.Quantity < 1 {
		return nil, apperror.New(apperror.CodeValidationFailed, "quantity must be at least 1")
	}

	c, err := s.activeCart(ref, true)
	if err != nil {
		return nil, err
	}

	item := CartItem{
		ID:         uuid.New().String(),
		CartID:     c.ID,
		ItemType:   req.ItemType,
		TicketType: req.TicketType,
		Quantity:   req.Quantity,
	}
	item.SetMetadata(req.Metadata)

	if req.ItemType == ItemTypeEvent {
		if req.EventID == nil {
			return nil, apperror.New(apperror.CodeValidationFailed, "event_id is required for event items")
		}
		var ev event.Event
		err := s.db.Where("id = ?", *req.EventID).First(&ev).Error
		if err == gorm.ErrRecordNotFound {
			return nil, apperror.New(apperror.CodeNotFound, "event not found")
		} else if err != nil {
			return nil, apperror.Internal(fmt.Errorf("load event: %w", err))
		}

		item.EventID = req.EventID
		item.ItemTitle = ev.Title
		if req.ItemTitle != "" {
			item.ItemTitle = req.ItemTitle
		}
		if req.UnitPrice != nil {
			item.UnitPrice = *req.UnitPrice
		} else {
			item.UnitPrice = ev.BasePrice
		}

		if len(req.SeatIDs) > 0 {
			res, err := s.reserver.ReserveSeats(ev.ID, req.SeatIDs, owner(ref))
			if err != nil {
				return nil, err
			}
			item.ReservationID = res.ID
			item.SetSeats(req.SeatIDs)
		}
	} else {
		if req.ItemRefID == "" || req.ItemTitle == "" {
			return nil, apperror.New(apperror.CodeValidationFailed, "item_ref_id and item_title are required for non-event items")
		}
		if req.UnitPrice == nil {
			return nil, apperror.New(apperror.CodeValidationFailed, "unit_price is required for non-event items")
		}
		item.ItemRefID = req.ItemRefID
		item.ItemTitle = req.ItemTitle
		item.UnitPrice = *req.UnitPrice
	}

	item.TotalPrice = item.UnitPrice.Mul(decimal.NewFromInt(int64(req.Quantity)))

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			return apperror.Internal(fmt.Errorf("create cart item: %w", err))
		}
		return s.recomputeTotal(tx, c.ID)
	})
	if err != nil {
		// The seat hold outlives the failed insert only until its TTL; free
		// it now so the seats go back on sale immediately.
		if item.ReservationID != "" {
			if relErr := s.reserver.ReleaseReservation(item.ReservationID, owner(ref)); relErr != nil {
				s.logger.WithError(relErr).WithField("reservation_id", item.ReservationID).
					Warn("Failed to release reservation after cart insert failure")
			}
		}
		return nil, err
	}

	return s.GetCart(ref)
}

// GetCart returns the owner's active cart with decoded items. Checked-out
// items are excluded.
func (s *Service) GetCart(ref Ref) (*CartView, error) {
	c, err := s.activeCart(ref, false)
	if err != nil {
		return nil, err
	}

	items, err := s.activeItems(s.db, c.ID)
	if err != nil {
		return nil, err
	}

	titles, err := s.eventTitles(items)
	if err != nil {
		return nil, err
	}

	view := &CartView{
		ID:                 c.ID,
		UserID:             c.UserID,
		IsGuest:            c.IsGuest,
		Status:             c.Status,
		Items:              make([]ItemView, len(items)),
		TotalAmount:        c.TotalAmount,
		DiscountCode:       c.DiscountCode,
		DiscountPercentage: c.DiscountPercentage,
		DiscountAmount:     c.DiscountAmount,
		ExpiresAt:          c.ExpiresAt,
	}
	for i, it := range items {
		title := it.ItemTitle
		if it.EventID != nil {
			if t, ok := titles[*it.EventID]; ok && t != "" {
				title = t
			}
		}
		view.Items[i] = ItemView{
			ID:            it.ID,
			ItemType:      it.ItemType,
			EventID:       it.EventID,
			ItemRefID:     it.ItemRefID,
			Title:         title,
			TicketType:    it.TicketType,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			TotalPrice:    it.TotalPrice,
			SeatNumbers:   it.Seats(),
			ReservationID: it.ReservationID,
			Metadata:      it.Metadata(),
		}
	}
	return view, nil
}

// RemoveItem deletes a cart item, releasing its seat hold first.
func (s *Service) RemoveItem(ref Ref, itemID string) (*CartView, error) {
	c, err := s.activeCart(ref, false)
	if err != nil {
		return nil, err
	}

	var item CartItem
	err = s.db.Where("id = ? AND cart_id = ?", itemID, c.ID).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.New(apperror.CodeNotFound, "cart item not found")
	} else if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load cart item: %w", err))
	}

	if item.ReservationID != "" {
		if err := s.reserver.ReleaseReservation(item.ReservationID, owner(ref)); err != nil {
			s.logger.WithError(err).WithField("reservation_id", item.ReservationID).
				Warn("Failed to release reservation on item removal")
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&CartItem{}, "id = ?", item.ID).Error; err != nil {
			return apperror.Internal(fmt.Errorf("delete cart item: %w", err))
		}
		return s.recomputeTotal(tx, c.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ref)
}

// UpdateQuantity changes an item's quantity. A quantity below 1 removes the
// item. Seat holds are left untouched.
func (s *Service) UpdateQuantity(ref Ref, itemID string, quantity int) (*CartView, error) {
	if quantity < 1 {
		return s.RemoveItem(ref, itemID)
	}

	c, err := s.activeCart(ref, false)
	if err != nil {
		return nil, err
	}

	var item CartItem
	err = s.db.Where("id = ? AND cart_id = ?", itemID, c.ID).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.New(apperror.CodeNotFound, "cart item not found")
	} else if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load cart item: %w", err))
	}

	total := item.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	err = s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"quantity":    quantity,
			"total_price": total,
		}
		if err := tx.Model(&CartItem{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
			return apperror.Internal(fmt.Errorf("update cart item: %w", err))
		}
		return s.recomputeTotal(tx, c.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ref)
}

// ClearCart releases every seat hold and deletes all active items. A missing
// cart is tolerated as a no-op.
func (s *Service) ClearCart(ref Ref) error {
	c, err := s.activeCart(ref, false)
	if apperror.CodeOf(err) == apperror.CodeNotFound {
		return nil
	} else if err != nil {
		return err
	}

	items, err := s.activeItems(s.db, c.ID)
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.ReservationID == "" {
			continue
		}
		if err := s.reserver.ReleaseReservation(it.ReservationID, owner(ref)); err != nil {
			s.logger.WithError(err).WithField("reservation_id", it.ReservationID).
				Warn("Failed to release reservation on cart clear")
		}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("cart_id = ? AND (status IS NULL OR status <> ?)", c.ID, ItemStatusCheckedOut).
			Delete(&CartItem{}).Error
		if err != nil {
			return apperror.Internal(fmt.Errorf("delete cart items: %w", err))
		}
		return s.recomputeTotal(tx, c.ID)
	})
}

// ApplyDiscount validates and applies a discount code to the cart.
func (s *Service) ApplyDiscount(ref Ref, code string) (*CartView, error) {
	c, err := s.activeCart(ref, false)
	if err != nil {
		return nil, err
	}

	var dc DiscountCode
	err = s.db.Where("code = ? AND is_active = ?", code, true).First(&dc).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.New(apperror.CodeNotFound, "discount code not found")
	} else if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load discount code: %w", err))
	}
	if dc.ExpiresAt != nil && dc.ExpiresAt.Before(s.now()) {
		return nil, apperror.New(apperror.CodeValidationFailed, "discount code has expired")
	}

	if ref.UserID != nil && dc.MaxUsesPerUser > 0 {
		var uses int64
		err := s.db.Model(&Cart{}).
			Where("user_id = ? AND discount_code = ? AND id <> ?", *ref.UserID, dc.Code, c.ID).
			Count(&uses).Error
		if err != nil {
			return nil, apperror.Internal(fmt.Errorf("count discount usage: %w", err))
		}
		if uses >= int64(dc.MaxUsesPerUser) {
			return nil, apperror.New(apperror.CodeValidationFailed, "discount code usage limit reached")
		}
	}

	amount := c.TotalAmount.Mul(dc.Percentage).Div(decimal.NewFromInt(100)).Truncate(2)
	updates := map[string]interface{}{
		"discount_code":       dc.Code,
		"discount_percentage": dc.Percentage,
		"discount_amount":     amount,
	}
	if err := s.db.Model(&Cart{}).Where("id = ?", c.ID).Updates(updates).Error; err != nil {
		return nil, apperror.Internal(fmt.Errorf("apply discount: %w", err))
	}
	return s.GetCart(ref)
}

// RemoveDiscount clears any applied discount from the cart.
func (s *Service) RemoveDiscount(ref Ref) (*CartView, error) {
	c, err := s.activeCart(ref, false)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"discount_code":       "",
		"discount_percentage": decimal.Zero,
		"discount_amount":     decimal.Zero,
	}
	if err := s.db.Model(&Cart{}).Where("id = ?", c.ID).Updates(updates).Error; err != nil {
		return nil, apperror.Internal(fmt.Errorf("remove discount: %w", err))
	}
	return s.GetCart(ref)
}

// ActiveCartRecord returns the raw active cart row for the owner. Used by
// checkout to snapshot totals.
func (s *Service) ActiveCartRecord(ref Ref) (*Cart, error) {
	return s.activeCart(ref, false)
}

// ActiveItems returns the active (not checked out) items of a cart.
func (s *Service) ActiveItems(cartID string) ([]CartItem, error) {
	return s.activeItems(s.db, cartID)
}

// ExpireGuestCarts marks overdue guest carts expired and releases the seat
// holds their items still carry.
func (s *Service) ExpireGuestCarts() (int, error) {
	var stale []Cart
	err := s.db.Where("is_guest = ? AND status = ? AND expires_at < ?", true, StatusActive, s.now()).
		Find(&stale).Error
	if err != nil {
		return 0, fmt.Errorf("find expired guest carts: %w", err)
	}

	expired := 0
	for _, c := range stale {
		items, err := s.activeItems(s.db, c.ID)
		if err != nil {
			s.logger.WithError(err).WithField("cart_id", c.ID).Warn("Failed to load items of expired guest cart")
			continue
		}
		ref := Ref{GuestCartID: c.ID}
		for _, it := range items {
			if it.ReservationID == "" {
				continue
			}
			if err := s.reserver.ReleaseReservation(it.ReservationID, owner(ref)); err != nil {
				s.logger.WithError(err).WithField("reservation_id", it.ReservationID).
					Warn("Failed to release reservation of expired guest cart")
			}
		}
		if err := s.db.Model(&Cart{}).Where("id = ?", c.ID).Update("status", StatusExpired).Error; err != nil {
			s.logger.WithError(err).WithField("cart_id", c.ID).Warn("Failed to expire guest cart")
			continue
		}
		expired++
	}
	return expired, nil
}

func owner(ref Ref) reservation.Owner {
	return reservation.Owner{UserID: ref.UserID, GuestCartID: ref.GuestCartID}
}

func (s *Service) activeCart(ref Ref, createForUser bool) (*Cart, error) {
	if ref.IsZero() {
		return nil, apperror.New(apperror.CodeValidationFailed, "cart owner is required")
	}

	var c Cart
	var err error
	if ref.UserID != nil {
		err = s.db.Where("user_id = ? AND status = ?", *ref.UserID, StatusActive).First(&c).Error
		if err == gorm.ErrRecordNotFound && createForUser {
			c = Cart{
				ID:     uuid.New().String(),
				UserID: ref.UserID,
				Status: StatusActive,
			}
			if createErr := s.db.Create(&c).Error; createErr != nil {
				return nil, apperror.Internal(fmt.Errorf("create cart: %w", createErr))
			}
			return &c, nil
		}
	} else {
		err = s.db.Where("id = ? AND is_guest = ? AND status = ?", ref.GuestCartID, true, StatusActive).First(&c).Error
	}
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.New(apperror.CodeNotFound, "cart not found")
	} else if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load cart: %w", err))
	}

	if c.IsGuest && c.ExpiresAt != nil && c.ExpiresAt.Before(s.now()) {
		return nil, apperror.New(apperror.CodeNotFound, "cart has expired")
	}
	return &c, nil
}

func (s *Service) activeItems(tx *gorm.DB, cartID string) ([]CartItem, error) {
	var items []CartItem
	err := tx.Where("cart_id = ? AND (status IS NULL OR status <> ?)", cartID, ItemStatusCheckedOut).
		Order("created_at ASC").Find(&items).Error
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load cart items: %w", err))
	}
	return items, nil
}

func (s *Service) eventTitles(items []CartItem) (map[uint]string, error) {
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		if it.EventID != nil {
			ids = append(ids, *it.EventID)
		}
	}
	titles := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return titles, nil
	}

	var events []event.Event
	if err := s.db.Select("id", "title").Where("id IN ?", ids).Find(&events).Error; err != nil {
		return nil, apperror.Internal(fmt.Errorf("load event titles: %w", err))
	}
	for _, ev := range events {
		titles[ev.ID] = ev.Title
	}
	return titles, nil
}

// recomputeTotal makes the database the source of truth for the cart total
// by summing active item totals, then refreshes the discount amount.
func (s *Service) recomputeTotal(tx *gorm.DB, cartID string) error {
	var total decimal.Decimal
	row := tx.Model(&CartItem{}).
		Select("COALESCE(SUM(total_price), 0)").
		Where("cart_id = ? AND (status IS NULL OR status <> ?)", cartID, ItemStatusCheckedOut).
		Row()
	if err := row.Scan(&total); err != nil {
		return apperror.Internal(fmt.Errorf("sum cart items: %w", err))
	}

	var c Cart
	if err := tx.Where("id = ?", cartID).First(&c).Error; err != nil {
		return apperror.Internal(fmt.Errorf("load cart: %w", err))
	}

	discount := decimal.Zero
	if c.DiscountCode != "" {
		discount = total.Mul(c.DiscountPercentage).Div(decimal.NewFromInt(100)).Truncate(2)
	}

	updates := map[string]interface{}{
		"total_amount":    total,
		"discount_amount": discount,
	}
	if err := tx.Model(&Cart{}).Where("id = ?", cartID).Updates(updates).Error; err != nil {
		return apperror.Internal(fmt.Errorf("update cart total: %w", err))
	}
	return nil
}
