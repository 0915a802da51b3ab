package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ledger/internal/core"
)

const (
	alice = "alice@example.com"
	bob   = "bob@example.com"
)

// RepositoryTestSuite runs every test against a fresh database file.
type RepositoryTestSuite struct {
	suite.Suite
	ctx    context.Context
	dbPath string
	repo   *SQLiteRepository
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.dbPath = filepath.Join(s.T().TempDir(), "ledger.db")
	repo, err := NewSQLiteRepository(s.dbPath)
	require.NoError(s.T(), err, "failed to create test database")
	s.repo = repo
}

func (s *RepositoryTestSuite) TearDownTest() {
	if s.repo != nil {
		s.repo.Close()
	}
}

func (s *RepositoryTestSuite) mustCategory(user, name string) core.Category {
	c, err := s.repo.CreateCategory(s.ctx, core.Category{UserID: user, Name: name})
	require.NoError(s.T(), err, "create category %s", name)
	return c
}

func (s *RepositoryTestSuite) mustExpense(user string, categoryID, cents int64, date time.Time) core.Expense {
	e, err := s.repo.CreateExpense(s.ctx, core.Expense{
		CategoryID: categoryID,
		UserID:     user,
		Amount:     core.Money{Cents: cents},
		Date:       date,
	})
	require.NoError(s.T(), err)
	return e
}

func (s *RepositoryTestSuite) TestSchemaIsVersionedAndIdempotent() {
	version, dirty, err := s.repo.SchemaVersion(s.ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), SchemaVersion, version)
	assert.False(s.T(), dirty)

	food := s.mustCategory(alice, "Food")
	s.mustExpense(alice, food.ID, 500, time.Now())

	require.NoError(s.T(), s.repo.EnsureSchema(s.ctx))
	require.NoError(s.T(), s.repo.Close())

	reopened, err := NewSQLiteRepository(s.dbPath)
	require.NoError(s.T(), err)
	s.repo = reopened

	categories, err := s.repo.ListCategories(s.ctx, alice)
	require.NoError(s.T(), err)
	require.Len(s.T(), categories, 1, "existing data must survive a second migration run")
	assert.Equal(s.T(), "Food", categories[0].Name)
}

func (s *RepositoryTestSuite) TestCreateCategory() {
	c, err := s.repo.CreateCategory(s.ctx, core.Category{UserID: alice, Name: "  Food  "})
	require.NoError(s.T(), err)
	assert.NotZero(s.T(), c.ID)
	assert.Equal(s.T(), "Food", c.Name)
	assert.False(s.T(), c.CreatedAt.IsZero())
}

func (s *RepositoryTestSuite) TestCreateCategoryRejectsEmptyName() {
	for _, name := range []string{"", "   "} {
		_, err := s.repo.CreateCategory(s.ctx, core.Category{UserID: alice, Name: name})
		assert.ErrorIs(s.T(), err, core.ErrInvalidInput)
	}
}

func (s *RepositoryTestSuite) TestCategoryNamesAreUniquePerUser() {
	s.mustCategory(alice, "Food")

	_, err := s.repo.CreateCategory(s.ctx, core.Category{UserID: alice, Name: "Food"})
	assert.ErrorIs(s.T(), err, core.ErrDuplicateName)

	_, err = s.repo.CreateCategory(s.ctx, core.Category{UserID: alice, Name: " Food"})
	assert.ErrorIs(s.T(), err, core.ErrDuplicateName, "names are compared after trimming")

	_, err = s.repo.CreateCategory(s.ctx, core.Category{UserID: alice, Name: "food"})
	assert.NoError(s.T(), err, "comparison is case-sensitive")

	_, err = s.repo.CreateCategory(s.ctx, core.Category{UserID: bob, Name: "Food"})
	assert.NoError(s.T(), err, "another user may reuse the name")
}

func (s *RepositoryTestSuite) TestListCategoriesInCreationOrder() {
	for _, name := range []string{"Transport", "Food", "Bills"} {
		s.mustCategory(alice, name)
	}
	s.mustCategory(bob, "Other")

	categories, err := s.repo.ListCategories(s.ctx, alice)
	require.NoError(s.T(), err)
	require.Len(s.T(), categories, 3)
	assert.Equal(s.T(), "Transport", categories[0].Name)
	assert.Equal(s.T(), "Food", categories[1].Name)
	assert.Equal(s.T(), "Bills", categories[2].Name)

	empty, err := s.repo.ListCategories(s.ctx, "nobody@example.com")
	require.NoError(s.T(), err)
	assert.NotNil(s.T(), empty)
	assert.Empty(s.T(), empty)
}

func (s *RepositoryTestSuite) TestCreateExpenseThenListIncludesItOnce() {
	food := s.mustCategory(alice, "Food")
	date := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	created, err := s.repo.CreateExpense(s.ctx, core.Expense{
		CategoryID:  food.ID,
		UserID:      alice,
		Amount:      core.Money{Cents: 1234},
		Date:        date,
		Description: "groceries",
	})
	require.NoError(s.T(), err)

	expenses, err := s.repo.ListExpensesByCategory(s.ctx, alice, food.ID)
	require.NoError(s.T(), err)
	count := 0
	for _, e := range expenses {
		if e.ID == created.ID {
			count++
			assert.Equal(s.T(), int64(1234), e.Amount.Cents)
			assert.True(s.T(), e.Date.Equal(date))
			assert.Equal(s.T(), "groceries", e.Description)
		}
	}
	assert.Equal(s.T(), 1, count)
}

func (s *RepositoryTestSuite) TestCreateExpenseRequiresOwnedCategory() {
	bobs := s.mustCategory(bob, "Food")

	_, err := s.repo.CreateExpense(s.ctx, core.Expense{
		CategoryID: bobs.ID, UserID: alice, Amount: core.Money{Cents: 100}, Date: time.Now(),
	})
	assert.ErrorIs(s.T(), err, core.ErrUnknownCategory)
	assert.ErrorIs(s.T(), err, core.ErrInvalidInput)

	_, err = s.repo.CreateExpense(s.ctx, core.Expense{
		CategoryID: 9999, UserID: alice, Amount: core.Money{Cents: 100}, Date: time.Now(),
	})
	assert.ErrorIs(s.T(), err, core.ErrInvalidInput)

	total, err := s.repo.TotalExpense(s.ctx, alice)
	require.NoError(s.T(), err)
	assert.Zero(s.T(), total.Cents, "a rejected expense leaves no row behind")
}

func (s *RepositoryTestSuite) TestCreateExpenseRejectsNonPositiveAmount() {
	food := s.mustCategory(alice, "Food")
	_, err := s.repo.CreateExpense(s.ctx, core.Expense{
		CategoryID: food.ID, UserID: alice, Amount: core.Money{Cents: 0}, Date: time.Now(),
	})
	assert.ErrorIs(s.T(), err, core.ErrInvalidAmount)
}

func (s *RepositoryTestSuite) TestListExpensesByCategoryIsScoped() {
	food := s.mustCategory(alice, "Food")
	transport := s.mustCategory(alice, "Transport")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.mustExpense(alice, food.ID, 300, base.Add(48*time.Hour))
	s.mustExpense(alice, food.ID, 100, base)
	s.mustExpense(alice, transport.ID, 200, base)

	expenses, err := s.repo.ListExpensesByCategory(s.ctx, alice, food.ID)
	require.NoError(s.T(), err)
	require.Len(s.T(), expenses, 2)
	assert.Equal(s.T(), int64(100), expenses[0].Amount.Cents, "ordered by date")
	assert.Equal(s.T(), int64(300), expenses[1].Amount.Cents)

	_, err = s.repo.ListExpensesByCategory(s.ctx, bob, food.ID)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestGetExpenseIsScopedToUser() {
	food := s.mustCategory(alice, "Food")
	e := s.mustExpense(alice, food.ID, 450, time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC))

	got, err := s.repo.GetExpense(s.ctx, alice, e.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), e.ID, got.ID)
	assert.Equal(s.T(), int64(450), got.Amount.Cents)

	_, err = s.repo.GetExpense(s.ctx, bob, e.ID)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
	_, err = s.repo.GetExpense(s.ctx, alice, e.ID+100)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestTotalExpenseEqualsSumOfAmounts() {
	total, err := s.repo.TotalExpense(s.ctx, alice)
	require.NoError(s.T(), err)
	assert.Zero(s.T(), total.Cents)

	food := s.mustCategory(alice, "Food")
	amounts := []string{"0.10", "0.20", "19.99", "1200", "0.01"}
	var want int64
	for _, a := range amounts {
		m, err := core.ParseMoney(a)
		require.NoError(s.T(), err)
		want += m.Cents
		s.mustExpense(alice, food.ID, m.Cents, time.Now())
	}
	bobs := s.mustCategory(bob, "Food")
	s.mustExpense(bob, bobs.ID, 99999, time.Now())

	total, err = s.repo.TotalExpense(s.ctx, alice)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), want, total.Cents)
}

func (s *RepositoryTestSuite) TestSumOverflowIsInvalidInput() {
	food := s.mustCategory(alice, "Food")
	for i := 0; i < 2; i++ {
		_, err := s.repo.db.ExecContext(s.ctx,
			`INSERT INTO expenses (category_id, user_id, amount_cents, date, description)
			 VALUES (?, ?, ?, ?, '')`,
			food.ID, alice, int64(5_000_000_000_000_000_000), core.FormatTimestamp(time.Now()))
		s.Require().NoError(err)
	}

	_, err := s.repo.TotalExpense(s.ctx, alice)
	assert.ErrorIs(s.T(), err, core.ErrSumOverflow)
	assert.ErrorIs(s.T(), err, core.ErrInvalidInput)
	assert.NotErrorIs(s.T(), err, core.ErrStorageUnavailable)

	_, err = s.repo.CategorySummaries(s.ctx, alice)
	assert.ErrorIs(s.T(), err, core.ErrSumOverflow)
}

func (s *RepositoryTestSuite) TestCreateExpenseRejectsUnstorableDate() {
	food := s.mustCategory(alice, "Food")
	_, err := s.repo.CreateExpense(s.ctx, core.Expense{
		CategoryID: food.ID, UserID: alice, Amount: core.Money{Cents: 100},
		Date: time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(s.T(), err, core.ErrInvalidDate)

	summaries, err := s.repo.CategorySummaries(s.ctx, alice)
	require.NoError(s.T(), err)
	require.Len(s.T(), summaries, 1)
	assert.Nil(s.T(), summaries[0].LastExpenseDate)
}

func (s *RepositoryTestSuite) TestCategorySummaries() {
	food := s.mustCategory(alice, "Food")
	s.mustCategory(alice, "Transport")
	first := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	latest := time.Date(2024, 2, 20, 18, 30, 0, 0, time.UTC)
	s.mustExpense(alice, food.ID, 5000, latest)
	s.mustExpense(alice, food.ID, 2000, first)

	summaries, err := s.repo.CategorySummaries(s.ctx, alice)
	require.NoError(s.T(), err)
	require.Len(s.T(), summaries, 2)

	assert.Equal(s.T(), "Food", summaries[0].Category.Name)
	assert.Equal(s.T(), int64(7000), summaries[0].TotalExpense.Cents)
	require.NotNil(s.T(), summaries[0].LastExpenseDate)
	assert.True(s.T(), summaries[0].LastExpenseDate.Equal(latest))

	assert.Equal(s.T(), "Transport", summaries[1].Category.Name)
	assert.Zero(s.T(), summaries[1].TotalExpense.Cents)
	assert.Nil(s.T(), summaries[1].LastExpenseDate)

	for _, sum := range summaries {
		assert.GreaterOrEqual(s.T(), sum.TotalExpense.Cents, int64(0))
	}
}

func (s *RepositoryTestSuite) TestBillRoundTrip() {
	deadline, err := core.ParseDate("2024-05-01")
	require.NoError(s.T(), err)

	_, err = s.repo.CreateBill(s.ctx, core.Bill{
		UserID: alice, Name: "Rent", Amount: core.Money{Cents: 120000}, Deadline: deadline,
	})
	require.NoError(s.T(), err)

	bills, err := s.repo.ListBills(s.ctx, alice)
	require.NoError(s.T(), err)
	require.Len(s.T(), bills, 1)
	assert.Equal(s.T(), "Rent", bills[0].Name)
	assert.Equal(s.T(), int64(120000), bills[0].Amount.Cents)
	assert.True(s.T(), bills[0].Deadline.Equal(deadline))

	n, err := s.repo.PendingBillCount(s.ctx, alice)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, n)

	other, err := s.repo.ListBills(s.ctx, bob)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), other)
}

func (s *RepositoryTestSuite) TestCreateBillValidation() {
	_, err := s.repo.CreateBill(s.ctx, core.Bill{UserID: alice, Name: " ", Amount: core.Money{Cents: 1}, Deadline: time.Now()})
	assert.ErrorIs(s.T(), err, core.ErrInvalidInput)

	_, err = s.repo.CreateBill(s.ctx, core.Bill{UserID: alice, Name: "Rent", Deadline: time.Now()})
	assert.ErrorIs(s.T(), err, core.ErrInvalidAmount)
}

func (s *RepositoryTestSuite) TestBillsDueBefore() {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"Water", "Power", "Rent"} {
		_, err := s.repo.CreateBill(s.ctx, core.Bill{
			UserID: alice, Name: name, Amount: core.Money{Cents: 1000},
			Deadline: now.AddDate(0, 0, i*10),
		})
		require.NoError(s.T(), err)
	}

	due, err := s.repo.BillsDueBefore(s.ctx, alice, now.AddDate(0, 0, 15))
	require.NoError(s.T(), err)
	require.Len(s.T(), due, 2)
	assert.Equal(s.T(), "Water", due[0].Name)
	assert.Equal(s.T(), "Power", due[1].Name)
}

func (s *RepositoryTestSuite) TestBudgets() {
	food := s.mustCategory(alice, "Food")
	bobs := s.mustCategory(bob, "Food")

	b, err := s.repo.CreateBudget(s.ctx, core.Budget{CategoryID: food.ID, UserID: alice, Amount: core.Money{Cents: 40000}})
	require.NoError(s.T(), err)
	assert.NotZero(s.T(), b.ID)

	_, err = s.repo.CreateBudget(s.ctx, core.Budget{CategoryID: bobs.ID, UserID: alice, Amount: core.Money{Cents: 1}})
	assert.ErrorIs(s.T(), err, core.ErrUnknownCategory)

	_, err = s.repo.CreateBudget(s.ctx, core.Budget{CategoryID: food.ID, UserID: alice})
	assert.ErrorIs(s.T(), err, core.ErrInvalidAmount)

	budgets, err := s.repo.ListBudgets(s.ctx, alice)
	require.NoError(s.T(), err)
	require.Len(s.T(), budgets, 1)
	assert.Equal(s.T(), int64(40000), budgets[0].Amount.Cents)
}

func (s *RepositoryTestSuite) TestUsersAndSession() {
	require.NoError(s.T(), s.repo.CreateUser(s.ctx, alice, "hash"))
	err := s.repo.CreateUser(s.ctx, alice, "other")
	assert.ErrorIs(s.T(), err, core.ErrConstraintViolation)

	hash, err := s.repo.PasswordHash(s.ctx, alice)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "hash", hash)

	_, err = s.repo.PasswordHash(s.ctx, bob)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)

	session, err := s.repo.LoadSession(s.ctx)
	require.NoError(s.T(), err)
	assert.Nil(s.T(), session)

	require.NoError(s.T(), s.repo.SaveSession(s.ctx, AuthSession{Email: alice, Provider: "local"}))
	require.NoError(s.T(), s.repo.SaveSession(s.ctx, AuthSession{Email: bob, Provider: "local"}))
	session, err = s.repo.LoadSession(s.ctx)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), session)
	assert.Equal(s.T(), bob, session.Email, "a new sign-in replaces the session")

	require.NoError(s.T(), s.repo.ClearSession(s.ctx))
	session, err = s.repo.LoadSession(s.ctx)
	require.NoError(s.T(), err)
	assert.Nil(s.T(), session)
}

func TestNewSQLiteRepositoryStorageUnavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := NewSQLiteRepository(filepath.Join(blocker, "ledger.db"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorageUnavailable)
}

func TestReadSchemaVersionOfFreshFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")
	version, dirty, err := ReadSchemaVersion(path)
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))
	version, _, err = ReadSchemaVersion(path)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
}
