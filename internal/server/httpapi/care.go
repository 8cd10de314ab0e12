package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/careconnect/internal/server/models"
	"github.com/go-chi/chi/v5"
)

type shoppingRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Quantity string `json:"quantity" validate:"max=64"`
}

type shoppingUpdateRequest struct {
	Done *bool `json:"done" validate:"required"`
}

type shoppingResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Quantity  string    `json:"quantity,omitempty"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"createdAt"`
}

type contactRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Relation string `json:"relation" validate:"max=64"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Email    string `json:"email" validate:"omitempty,email"`
}

type contactResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Relation  string    `json:"relation,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type chatRequest struct {
	Message string `json:"message" validate:"required"`
}

type userRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"displayName" validate:"max=200"`
}

type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toShoppingResponse(i *models.ShoppingItem) shoppingResponse {
	return shoppingResponse{ID: i.ID, Name: i.Name, Quantity: i.Quantity, Done: i.Done, CreatedAt: i.CreatedAt}
}

func toContactResponse(c *models.EmergencyContact) contactResponse {
	return contactResponse{
		ID:        c.ID,
		Name:      c.Name,
		Relation:  c.Relation,
		Phone:     c.Phone,
		Email:     c.Email,
		CreatedAt: c.CreatedAt,
	}
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, CreatedAt: u.CreatedAt}
}

// ListShopping handles GET /shopping
func (s *Server) ListShopping(w http.ResponseWriter, r *http.Request) {
	items, err := s.care.ListShopping(r.Context(), currentUser(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	out := make([]shoppingResponse, 0, len(items))
	for _, i := range items {
		out = append(out, toShoppingResponse(i))
	}
	respondJSON(w, http.StatusOK, out)
}

// AddShoppingItem handles POST /shopping
func (s *Server) AddShoppingItem(w http.ResponseWriter, r *http.Request) {
	var req shoppingRequest
	if !s.decode(w, r, &req) {
		return
	}

	item, err := s.care.AddShoppingItem(r.Context(), currentUser(r), req.Name, req.Quantity)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toShoppingResponse(item))
}

// UpdateShoppingItem handles PATCH /shopping/{id}
func (s *Server) UpdateShoppingItem(w http.ResponseWriter, r *http.Request) {
	var req shoppingUpdateRequest
	if !s.decode(w, r, &req) {
		return
	}

	item, err := s.care.SetShoppingDone(r.Context(), chi.URLParam(r, "id"), currentUser(r), *req.Done)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toShoppingResponse(item))
}

// DeleteShoppingItem handles DELETE /shopping/{id}
func (s *Server) DeleteShoppingItem(w http.ResponseWriter, r *http.Request) {
	if err := s.care.DeleteShoppingItem(r.Context(), chi.URLParam(r, "id"), currentUser(r)); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListContacts handles GET /contacts
func (s *Server) ListContacts(w http.ResponseWriter, r *http.Request) {
	list, err := s.care.ListContacts(r.Context(), currentUser(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	out := make([]contactResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toContactResponse(c))
	}
	respondJSON(w, http.StatusOK, out)
}

// AddContact handles POST /contacts
func (s *Server) AddContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if !s.decode(w, r, &req) {
		return
	}

	c, err := s.care.AddContact(r.Context(), currentUser(r), &models.EmergencyContact{
		Name:     req.Name,
		Relation: req.Relation,
		Phone:    req.Phone,
		Email:    req.Email,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toContactResponse(c))
}

// DeleteContact handles DELETE /contacts/{id}
func (s *Server) DeleteContact(w http.ResponseWriter, r *http.Request) {
	if err := s.care.DeleteContact(r.Context(), chi.URLParam(r, "id"), currentUser(r)); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendChat handles POST /chat
func (s *Server) SendChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !s.decode(w, r, &req) {
		return
	}

	reply, err := s.chat.Chat(r.Context(), req.Message)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// RegisterUser handles POST /users
func (s *Server) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !s.decode(w, r, &req) {
		return
	}

	user, token, err := s.users.Register(r.Context(), req.Email, req.DisplayName)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"user":        toUserResponse(user),
		"accessToken": token,
	})
}

// CurrentUser handles GET /users/me
func (s *Server) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.Get(r.Context(), currentUser(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(user))
}
