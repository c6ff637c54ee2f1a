package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Registry holds registered users, pending registration requests and the
// allow-list. Mutations write through to the store before memory changes, so a
// failed write leaves the registry untouched.
type Registry struct {
	mu       sync.Mutex
	store    RegistryStore
	digester *KeyDigester
	notifier *Notifier
	now      func() time.Time
	logger   *slog.Logger

	users     map[string]User
	requests  map[string]RegistrationRequest
	allowList map[string]struct{}
}

// NewRegistry constructs an empty registry. Call Load to restore persisted state.
func NewRegistry(store RegistryStore, digester *KeyDigester, notifier *Notifier, now func() time.Time, logger *slog.Logger) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		store:     store,
		digester:  digester,
		notifier:  notifier,
		now:       now,
		logger:    defaultLogger(logger),
		users:     make(map[string]User),
		requests:  make(map[string]RegistrationRequest),
		allowList: make(map[string]struct{}),
	}
}

func (r *Registry) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, r.logger, "Registry", operation, attrs...)
}

// Load replaces in-memory state with the store's contents.
func (r *Registry) Load(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("Registry is nil")
	}
	if r.store == nil {
		return nil
	}
	snapshot, err := r.store.LoadRegistry(ctx)
	if err != nil {
		return providerError("load registry", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = make(map[string]User, len(snapshot.Users))
	for _, user := range snapshot.Users {
		r.users[user.ID] = user
	}
	r.requests = make(map[string]RegistrationRequest, len(snapshot.Requests))
	for _, request := range snapshot.Requests {
		r.requests[request.UserID] = request
	}
	r.allowList = make(map[string]struct{}, len(snapshot.AllowList))
	for _, digest := range snapshot.AllowList {
		r.allowList[digest] = struct{}{}
	}

	r.loggerWith(ctx, "Load").InfoContext(ctx, "registry loaded",
		"users", len(r.users),
		"pending_registrations", len(r.requests),
		"allow_list", len(r.allowList))
	return nil
}

// Register creates the user immediately when the key is allow-listed and
// otherwise files a registration request and alerts every admin.
func (r *Registry) Register(ctx context.Context, params RegisterParams) (outcome RegistrationOutcome, user User, err error) {
	if r == nil {
		err = fmt.Errorf("Registry is nil")
		return
	}

	logger := r.loggerWith(ctx, "Register", "user_id", params.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "registration handled", "outcome", outcome.String())
	}()

	input, vErr := validateRegistration(params)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	digest := r.digester.Digest(input.Key)
	now := r.now()

	r.mu.Lock()
	if _, exists := r.users[input.UserID]; exists {
		r.mu.Unlock()
		err = ErrDuplicateUser
		return
	}

	if _, allowed := r.allowList[digest]; allowed {
		user = User{ID: input.UserID, DisplayName: input.DisplayName, Unit: input.Unit, CreatedAt: now}
		if r.store != nil {
			if storeErr := r.store.SaveUser(ctx, user); storeErr != nil {
				r.mu.Unlock()
				err = r.mapStoreError("save user", storeErr)
				return
			}
		}
		r.users[user.ID] = user
		delete(r.requests, user.ID)
		r.mu.Unlock()
		outcome = OutcomeRegistered
		return
	}

	request := RegistrationRequest{
		UserID:      input.UserID,
		Key:         input.Key,
		DisplayName: input.DisplayName,
		Unit:        input.Unit,
		CreatedAt:   now,
	}
	if r.store != nil {
		if storeErr := r.store.SaveRegistrationRequest(ctx, request); storeErr != nil {
			r.mu.Unlock()
			err = r.mapStoreError("save registration request", storeErr)
			return
		}
	}
	r.requests[request.UserID] = request
	admins := r.adminsLocked()
	r.mu.Unlock()

	outcome = OutcomePending
	r.notifier.Broadcast(ctx, admins, Text(fmt.Sprintf(
		"%s has requested approval with identity %s & phone %s. Approve users with /approve.",
		request.DisplayName, request.Key.Identity, request.Key.Numeric)))
	return
}

// ApproveKey adds key to the allow-list. It does not create any user.
func (r *Registry) ApproveKey(ctx context.Context, actorID string, key AuthKey) (err error) {
	if r == nil {
		return fmt.Errorf("Registry is nil")
	}

	logger := r.loggerWith(ctx, "ApproveKey", "principal_id", actorID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to approve key", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "key approved")
	}()

	if _, err = r.RequireAdmin(actorID); err != nil {
		return err
	}
	parsed, err := ParseAuthKey(key.Identity, key.Numeric)
	if err != nil {
		return err
	}
	return r.AllowKey(ctx, parsed)
}

// AllowKey adds key to the allow-list without an authorization check. It backs
// operator seeding from configuration and the CLI.
func (r *Registry) AllowKey(ctx context.Context, key AuthKey) error {
	if r == nil {
		return fmt.Errorf("Registry is nil")
	}
	parsed, err := ParseAuthKey(key.Identity, key.Numeric)
	if err != nil {
		return err
	}
	digest := r.digester.Digest(parsed)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.allowList[digest]; exists {
		return nil
	}
	if r.store != nil {
		if err := r.store.AddAllowListDigest(ctx, digest); err != nil {
			return r.mapStoreError("add allow list digest", err)
		}
	}
	r.allowList[digest] = struct{}{}
	return nil
}

// IsAllowed reports whether key is on the allow-list.
func (r *Registry) IsAllowed(key AuthKey) bool {
	digest := r.digester.Digest(key)
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.allowList[digest]
	return ok
}

// ApproveRequest consumes the user's registration request, allow-lists its key
// and creates the user. The requester is told the outcome.
func (r *Registry) ApproveRequest(ctx context.Context, actorID, userID string) (user User, err error) {
	if r == nil {
		err = fmt.Errorf("Registry is nil")
		return
	}

	logger := r.loggerWith(ctx, "ApproveRequest", "principal_id", actorID, "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to approve registration", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "registration approved")
	}()

	if _, err = r.RequireAdmin(actorID); err != nil {
		return
	}

	r.mu.Lock()
	request, ok := r.requests[userID]
	if !ok {
		r.mu.Unlock()
		err = ErrStaleReference
		return
	}
	if _, exists := r.users[userID]; exists {
		r.mu.Unlock()
		err = ErrDuplicateUser
		return
	}

	digest := r.digester.Digest(request.Key)
	user = User{ID: request.UserID, DisplayName: request.DisplayName, Unit: request.Unit, CreatedAt: r.now()}
	if r.store != nil {
		if storeErr := r.store.ApproveRegistration(ctx, user, digest); storeErr != nil {
			r.mu.Unlock()
			if errors.Is(storeErr, ErrNotFound) {
				err = ErrStaleReference
				return
			}
			err = r.mapStoreError("approve registration", storeErr)
			return
		}
	}
	delete(r.requests, userID)
	r.allowList[digest] = struct{}{}
	r.users[user.ID] = user
	r.mu.Unlock()

	r.notifier.Notify(ctx, user.ID, Text(fmt.Sprintf("You have successfully registered as %s.", user.DisplayName)))
	return
}

// RejectRequest discards a registration request and tells the requester.
func (r *Registry) RejectRequest(ctx context.Context, actorID, userID string) (request RegistrationRequest, err error) {
	if r == nil {
		err = fmt.Errorf("Registry is nil")
		return
	}

	logger := r.loggerWith(ctx, "RejectRequest", "principal_id", actorID, "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to reject registration", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "registration rejected")
	}()

	if _, err = r.RequireAdmin(actorID); err != nil {
		return
	}

	request, err = r.dropRequest(ctx, userID)
	if err != nil {
		return
	}
	r.notifier.Notify(ctx, userID, Text("Your registration request was rejected. Please contact an admin."))
	return
}

func (r *Registry) dropRequest(ctx context.Context, userID string) (RegistrationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[userID]
	if !ok {
		return RegistrationRequest{}, ErrStaleReference
	}
	if r.store != nil {
		if err := r.store.DeleteRegistrationRequest(ctx, userID); err != nil && !errors.Is(err, ErrNotFound) {
			return RegistrationRequest{}, r.mapStoreError("delete registration request", err)
		}
	}
	delete(r.requests, userID)
	return request, nil
}

// ExpireRequestsBefore drops registration requests filed before cutoff and
// tells each requester.
func (r *Registry) ExpireRequestsBefore(ctx context.Context, cutoff time.Time) ([]RegistrationRequest, error) {
	var expired []RegistrationRequest
	for _, request := range r.PendingRegistrations() {
		if !request.CreatedAt.Before(cutoff) {
			continue
		}
		dropped, err := r.dropRequest(ctx, request.UserID)
		if errors.Is(err, ErrStaleReference) {
			continue
		}
		if err != nil {
			return expired, err
		}
		expired = append(expired, dropped)
		r.notifier.Notify(ctx, dropped.UserID, Text("Your registration request expired before an admin reviewed it. Use /register to try again."))
	}
	return expired, nil
}

// Promote grants admin privileges to a registered user.
func (r *Registry) Promote(ctx context.Context, actorID, userID string) (user User, err error) {
	if r == nil {
		err = fmt.Errorf("Registry is nil")
		return
	}

	logger := r.loggerWith(ctx, "Promote", "principal_id", actorID, "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to promote user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user promoted")
	}()

	if _, err = r.RequireAdmin(actorID); err != nil {
		return
	}
	user, err = r.grantAdmin(ctx, userID)
	if err != nil {
		return
	}
	r.notifier.Notify(ctx, userID, Text("You have been promoted to admin."))
	return
}

// Bootstrap grants admin privileges without an acting admin. It is reserved
// for operator tooling that seeds the first admin.
func (r *Registry) Bootstrap(ctx context.Context, userID string) (User, error) {
	if r == nil {
		return User{}, fmt.Errorf("Registry is nil")
	}
	user, err := r.grantAdmin(ctx, userID)
	if err != nil {
		return User{}, err
	}
	r.loggerWith(ctx, "Bootstrap", "user_id", userID).InfoContext(ctx, "admin bootstrapped")
	return user, nil
}

func (r *Registry) grantAdmin(ctx context.Context, userID string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	if user.IsAdmin {
		return user, nil
	}
	user.IsAdmin = true
	if r.store != nil {
		if err := r.store.SaveUser(ctx, user); err != nil {
			return User{}, r.mapStoreError("save user", err)
		}
	}
	r.users[userID] = user
	return user, nil
}

// Deregister removes the user.
func (r *Registry) Deregister(ctx context.Context, userID string) (user User, err error) {
	if r == nil {
		err = fmt.Errorf("Registry is nil")
		return
	}

	logger := r.loggerWith(ctx, "Deregister", "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to deregister user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user deregistered")
	}()

	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		err = ErrNotRegistered
		return
	}
	if r.store != nil {
		if storeErr := r.store.DeleteUser(ctx, userID); storeErr != nil && !errors.Is(storeErr, ErrNotFound) {
			err = r.mapStoreError("delete user", storeErr)
			return
		}
	}
	delete(r.users, userID)
	return
}

// User returns the registered user with id.
func (r *Registry) User(id string) (User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	return user, ok
}

// RequireUser returns the registered user or ErrNotRegistered.
func (r *Registry) RequireUser(id string) (User, error) {
	user, ok := r.User(id)
	if !ok {
		return User{}, ErrNotRegistered
	}
	return user, nil
}

// RequireAdmin returns the user when registered as an admin.
func (r *Registry) RequireAdmin(id string) (User, error) {
	user, err := r.RequireUser(id)
	if err != nil {
		return User{}, ErrNotAdmin
	}
	if !user.IsAdmin {
		return User{}, ErrNotAdmin
	}
	return user, nil
}

// IsAdmin reports whether id belongs to an admin.
func (r *Registry) IsAdmin(id string) bool {
	_, err := r.RequireAdmin(id)
	return err == nil
}

// Users returns every registered user ordered by registration time.
func (r *Registry) Users() []User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filterLocked(func(User) bool { return true })
}

// Admins returns every admin user.
func (r *Registry) Admins() []User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.adminsLocked()
}

// NonAdmins returns users eligible for promotion.
func (r *Registry) NonAdmins() []User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filterLocked(func(u User) bool { return !u.IsAdmin })
}

// PendingRegistrations returns the outstanding requests, oldest first.
func (r *Registry) PendingRegistrations() []RegistrationRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RegistrationRequest, 0, len(r.requests))
	for _, request := range r.requests {
		out = append(out, request)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func (r *Registry) adminsLocked() []User {
	return r.filterLocked(func(u User) bool { return u.IsAdmin })
}

func (r *Registry) filterLocked(keep func(User) bool) []User {
	out := make([]User, 0, len(r.users))
	for _, user := range r.users {
		if keep(user) {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Registry) mapStoreError(op string, err error) error {
	if errors.Is(err, ErrDuplicateUser) {
		return ErrDuplicateUser
	}
	return providerError(op, err)
}

func validateRegistration(params RegisterParams) (RegisterParams, *ValidationError) {
	vErr := &ValidationError{}
	out := RegisterParams{
		UserID:      params.UserID,
		DisplayName: normalizeLabel(params.DisplayName),
		Unit:        normalizeLabel(params.Unit),
	}
	if out.UserID == "" {
		vErr.add("user_id", "user id is required")
	}
	key, err := ParseAuthKey(params.Key.Identity, params.Key.Numeric)
	if err != nil {
		vErr.merge(asValidation(err))
	}
	out.Key = key
	if out.DisplayName == "" {
		vErr.add("display_name", "please enter your rank and name")
	} else if len([]rune(out.DisplayName)) > 64 {
		vErr.add("display_name", "rank and name must be at most 64 characters")
	}
	if out.Unit == "" {
		vErr.add("unit", "please enter your unit")
	} else if len([]rune(out.Unit)) > 32 {
		vErr.add("unit", "unit must be at most 32 characters")
	}
	return out, vErr
}
