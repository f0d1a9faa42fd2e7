package badgerdb

import (
	"context"
	"fmt"
	"strconv"

	"token-launch-gateway/internal/core/domain"

	"github.com/dgraph-io/badger/v4"
)

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a badger-backed UserRepo.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

func userKey(userID int64) string {
	return fmt.Sprintf("%s%020d", prefixUser, userID)
}

func (r *UserRepo) Get(ctx context.Context, userID int64) (*domain.UserAccount, error) {
	var u domain.UserAccount
	var found bool
	err := r.db.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, userKey(userID), &u)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) Create(ctx context.Context, user *domain.UserAccount) (bool, error) {
	created := false
	err := r.db.update(func(txn *badger.Txn) error {
		created = false
		var existing domain.UserAccount
		found, err := getJSON(txn, userKey(user.UserID), &existing)
		if err != nil || found {
			return err
		}
		created = true
		return setJSON(txn, userKey(user.UserID), user)
	})
	return created, err
}

func (r *UserRepo) SetPayoutWallet(ctx context.Context, userID int64, wallet string) error {
	return r.db.update(func(txn *badger.Txn) error {
		var u domain.UserAccount
		found, err := getJSON(txn, userKey(userID), &u)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("user not found: %d", userID)
		}
		u.PayoutWallet = wallet
		return setJSON(txn, userKey(userID), &u)
	})
}

func (r *UserRepo) ConsumeBonus(ctx context.Context, userID int64, signature string) (bool, error) {
	consumed := false
	err := r.db.update(func(txn *badger.Txn) error {
		consumed = false
		if _, err := txn.Get([]byte(prefixBonus + signature)); err == nil {
			return nil
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		var u domain.UserAccount
		found, err := getJSON(txn, userKey(userID), &u)
		if err != nil || !found || u.BonusCredits <= 0 {
			return err
		}
		u.BonusCredits--
		if err := setJSON(txn, userKey(userID), &u); err != nil {
			return err
		}
		consumed = true
		return txn.Set([]byte(prefixBonus+signature), []byte(strconv.FormatInt(userID, 10)))
	})
	return consumed, err
}
