package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blogsphere/blogapi/internal/content"
	"github.com/blogsphere/blogapi/internal/db"
	"github.com/blogsphere/blogapi/internal/models"
)

// memStore is an in-memory db.Store. Transaction runs fn against a copy of
// the data and only keeps it when fn succeeds.
type memStore struct {
	data *memData
}

type termRec struct {
	ID          uuid.UUID
	Name        string
	Slug        string
	Description string
	Color       string
	PostCount   int64
}

type memData struct {
	clock      time.Time
	users      map[uuid.UUID]models.User
	posts      map[uuid.UUID]models.Post
	categories map[uuid.UUID]termRec
	tags       map[uuid.UUID]termRec
	postCats   map[uuid.UUID][]uuid.UUID
	postTags   map[uuid.UUID][]uuid.UUID
	comments   map[uuid.UUID]models.Comment

	// failPostCreate makes Posts().Create fail, to exercise rollback
	failPostCreate error
}

func newMemStore() *memStore {
	return &memStore{data: &memData{
		clock:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		users:      map[uuid.UUID]models.User{},
		posts:      map[uuid.UUID]models.Post{},
		categories: map[uuid.UUID]termRec{},
		tags:       map[uuid.UUID]termRec{},
		postCats:   map[uuid.UUID][]uuid.UUID{},
		postTags:   map[uuid.UUID][]uuid.UUID{},
		comments:   map[uuid.UUID]models.Comment{},
	}}
}

func (d *memData) tick() time.Time {
	d.clock = d.clock.Add(time.Second)
	return d.clock
}

func (d *memData) clone() *memData {
	c := *d
	c.users = make(map[uuid.UUID]models.User, len(d.users))
	for k, v := range d.users {
		c.users[k] = v
	}
	c.posts = make(map[uuid.UUID]models.Post, len(d.posts))
	for k, v := range d.posts {
		c.posts[k] = v
	}
	c.categories = make(map[uuid.UUID]termRec, len(d.categories))
	for k, v := range d.categories {
		c.categories[k] = v
	}
	c.tags = make(map[uuid.UUID]termRec, len(d.tags))
	for k, v := range d.tags {
		c.tags[k] = v
	}
	c.postCats = make(map[uuid.UUID][]uuid.UUID, len(d.postCats))
	for k, v := range d.postCats {
		c.postCats[k] = append([]uuid.UUID(nil), v...)
	}
	c.postTags = make(map[uuid.UUID][]uuid.UUID, len(d.postTags))
	for k, v := range d.postTags {
		c.postTags[k] = append([]uuid.UUID(nil), v...)
	}
	c.comments = make(map[uuid.UUID]models.Comment, len(d.comments))
	for k, v := range d.comments {
		c.comments[k] = v
	}
	return &c
}

func (s *memStore) Users() db.Users           { return memUsers{s.data} }
func (s *memStore) Posts() db.Posts           { return memPosts{s.data} }
func (s *memStore) Categories() db.Categories { return memCategories{memTerms{d: s.data, cats: true}} }
func (s *memStore) Tags() db.Tags             { return memTags{memTerms{d: s.data}} }
func (s *memStore) Comments() db.Comments     { return memComments{s.data} }

func (s *memStore) Transaction(ctx context.Context, fn func(tx db.Store) error) error {
	tx := &memStore{data: s.data.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	*s.data = *tx.data
	return nil
}

// helpers used by tests

func (s *memStore) addUser(username string, role models.Role) *models.User {
	u := models.User{
		ID:          uuid.New(),
		Username:    username,
		Email:       username + "@example.com",
		FirstName:   strings.ToUpper(username[:1]) + username[1:],
		LastName:    "Tester",
		Role:        role,
		Preferences: models.DefaultPreferences(),
		CreatedAt:   s.data.tick(),
	}
	s.data.users[u.ID] = u
	return &u
}

func (s *memStore) category(name string) termRec {
	for _, c := range s.data.categories {
		if c.Name == name {
			return c
		}
	}
	return termRec{}
}

func (s *memStore) tag(name string) termRec {
	for _, t := range s.data.tags {
		if t.Name == name {
			return t
		}
	}
	return termRec{}
}

// users

type memUsers struct{ d *memData }

func (r memUsers) find(match func(models.User) bool) (*models.User, error) {
	for _, u := range r.d.users {
		if match(u) {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (r memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.ID == id })
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.find(func(u models.User) bool { return u.Email == email })
}

func (r memUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Username == username })
}

func (r memUsers) GetByVerificationToken(_ context.Context, hash string, now time.Time) (*models.User, error) {
	return r.find(func(u models.User) bool {
		return u.EmailVerificationToken != nil && *u.EmailVerificationToken == hash &&
			u.EmailVerificationExpires != nil && u.EmailVerificationExpires.After(now)
	})
}

func (r memUsers) GetByResetToken(_ context.Context, hash string, now time.Time) (*models.User, error) {
	return r.find(func(u models.User) bool {
		return u.PasswordResetToken != nil && *u.PasswordResetToken == hash &&
			u.PasswordResetExpires != nil && u.PasswordResetExpires.After(now)
	})
}

func (r memUsers) Create(_ context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range r.d.users {
		if u.Email == user.Email || u.Username == user.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = r.d.tick()
	user.UpdatedAt = user.CreatedAt
	r.d.users[user.ID] = *user
	return nil
}

func (r memUsers) Update(_ context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.UpdatedAt = r.d.tick()
	r.d.users[user.ID] = *user
	return nil
}

func (r memUsers) PurgeExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for id, u := range r.d.users {
		changed := false
		if u.EmailVerificationExpires != nil && u.EmailVerificationExpires.Before(now) {
			u.EmailVerificationToken, u.EmailVerificationExpires = nil, nil
			changed = true
			n++
		}
		if u.PasswordResetExpires != nil && u.PasswordResetExpires.Before(now) {
			u.PasswordResetToken, u.PasswordResetExpires = nil, nil
			changed = true
			n++
		}
		if changed {
			r.d.users[id] = u
		}
	}
	return n, nil
}

// posts

type memPosts struct{ d *memData }

func (r memPosts) load(p models.Post) *models.Post {
	if u, ok := r.d.users[p.AuthorID]; ok {
		p.Author = &models.User{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName, Avatar: u.Avatar}
	}
	p.Categories = nil
	for _, id := range r.d.postCats[p.ID] {
		c := r.d.categories[id]
		p.Categories = append(p.Categories, models.Category{ID: c.ID, Name: c.Name, Slug: c.Slug, Description: c.Description, Color: c.Color, PostCount: c.PostCount})
	}
	p.Tags = nil
	for _, id := range r.d.postTags[p.ID] {
		t := r.d.tags[id]
		p.Tags = append(p.Tags, models.Tag{ID: t.ID, Name: t.Name, Slug: t.Slug, PostCount: t.PostCount})
	}
	return &p
}

func (r memPosts) GetByID(_ context.Context, id uuid.UUID) (*models.Post, error) {
	p, ok := r.d.posts[id]
	if !ok {
		return nil, nil
	}
	return r.load(p), nil
}

func (r memPosts) GetBySlug(_ context.Context, slug string) (*models.Post, error) {
	for _, p := range r.d.posts {
		if p.Slug == slug {
			return r.load(p), nil
		}
	}
	return nil, nil
}

func (r memPosts) SlugExists(_ context.Context, slug string) (bool, error) {
	for _, p := range r.d.posts {
		if p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func (r memPosts) List(_ context.Context, q db.PostQuery) ([]models.Post, int64, error) {
	var matched []models.Post
	for _, p := range r.d.posts {
		if q.Text != "" && !strings.Contains(strings.ToLower(p.Title+" "+p.Content), strings.ToLower(q.Text)) {
			continue
		}
		if q.CategoryID != nil && !containsID(r.d.postCats[p.ID], *q.CategoryID) {
			continue
		}
		if q.TagID != nil && !containsID(r.d.postTags[p.ID], *q.TagID) {
			continue
		}
		if q.AuthorID != nil && p.AuthorID != *q.AuthorID {
			continue
		}
		if len(q.Statuses) > 0 {
			ok := false
			for _, st := range q.Statuses {
				ok = ok || p.Status == st
			}
			if !ok {
				continue
			}
		}
		if q.OnlyPublic && !p.IsPublic {
			continue
		}
		if q.From != nil && p.CreatedAt.Before(*q.From) {
			continue
		}
		if q.To != nil && p.CreatedAt.After(*q.To) {
			continue
		}
		matched = append(matched, p)
	}

	less := func(a, b models.Post) bool {
		switch q.SortBy {
		case "title":
			return a.Title < b.Title
		case "viewCount":
			return a.ViewCount < b.ViewCount
		case "likeCount":
			return a.LikeCount < b.LikeCount
		case "updatedAt":
			return a.UpdatedAt.Before(b.UpdatedAt)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if q.Desc {
			return less(matched[j], matched[i])
		}
		return less(matched[i], matched[j])
	})

	total := int64(len(matched))
	start := q.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}
	out := make([]models.Post, 0, end-start)
	for _, p := range matched[start:end] {
		out = append(out, *r.load(p))
	}
	return out, total, nil
}

func (r memPosts) Create(ctx context.Context, post *models.Post, categoryIDs, tagIDs []uuid.UUID) error {
	if r.d.failPostCreate != nil {
		return r.d.failPostCreate
	}
	if exists, _ := r.SlugExists(ctx, post.Slug); exists {
		return gorm.ErrDuplicatedKey
	}
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	post.CreatedAt = r.d.tick()
	post.UpdatedAt = post.CreatedAt
	stored := *post
	stored.Author, stored.Categories, stored.Tags = nil, nil, nil
	r.d.posts[post.ID] = stored
	if err := r.AddCategories(ctx, post.ID, categoryIDs); err != nil {
		return err
	}
	return r.AddTags(ctx, post.ID, tagIDs)
}

func (r memPosts) Update(_ context.Context, post *models.Post) error {
	cur, ok := r.d.posts[post.ID]
	if !ok {
		return nil
	}
	cur.Title, cur.Content, cur.Excerpt, cur.ExcerptAuto = post.Title, post.Content, post.Excerpt, post.ExcerptAuto
	cur.FeaturedImage, cur.Status, cur.IsPublic, cur.ReadTime = post.FeaturedImage, post.Status, post.IsPublic, post.ReadTime
	cur.PublishedAt, cur.SEO, cur.UpdatedAt = post.PublishedAt, post.SEO, post.UpdatedAt
	r.d.posts[post.ID] = cur
	return nil
}

func (r memPosts) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.d.postCats, id)
	delete(r.d.postTags, id)
	delete(r.d.posts, id)
	return nil
}

func addLinks(m map[uuid.UUID][]uuid.UUID, postID uuid.UUID, ids []uuid.UUID) {
	for _, id := range ids {
		if !containsID(m[postID], id) {
			m[postID] = append(m[postID], id)
		}
	}
}

func removeLinks(m map[uuid.UUID][]uuid.UUID, postID uuid.UUID, ids []uuid.UUID) {
	kept := m[postID][:0:0]
	for _, id := range m[postID] {
		if !containsID(ids, id) {
			kept = append(kept, id)
		}
	}
	m[postID] = kept
}

func (r memPosts) AddCategories(_ context.Context, postID uuid.UUID, ids []uuid.UUID) error {
	addLinks(r.d.postCats, postID, ids)
	return nil
}

func (r memPosts) RemoveCategories(_ context.Context, postID uuid.UUID, ids []uuid.UUID) error {
	removeLinks(r.d.postCats, postID, ids)
	return nil
}

func (r memPosts) AddTags(_ context.Context, postID uuid.UUID, ids []uuid.UUID) error {
	addLinks(r.d.postTags, postID, ids)
	return nil
}

func (r memPosts) RemoveTags(_ context.Context, postID uuid.UUID, ids []uuid.UUID) error {
	removeLinks(r.d.postTags, postID, ids)
	return nil
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func (r memPosts) AdjustCounter(_ context.Context, id uuid.UUID, counter db.Counter, delta int) (bool, error) {
	p, ok := r.d.posts[id]
	if !ok {
		return false, nil
	}
	switch counter {
	case db.ViewCount:
		p.ViewCount = clamp(p.ViewCount + int64(delta))
	case db.LikeCount:
		p.LikeCount = clamp(p.LikeCount + int64(delta))
	case db.CommentCount:
		p.CommentCount = clamp(p.CommentCount + int64(delta))
	default:
		return false, errors.New("unknown counter")
	}
	r.d.posts[id] = p
	return true, nil
}

// categories and tags

type memTerms struct {
	d    *memData
	cats bool
}

func (r memTerms) table() map[uuid.UUID]termRec {
	if r.cats {
		return r.d.categories
	}
	return r.d.tags
}

func (r memTerms) joins() map[uuid.UUID][]uuid.UUID {
	if r.cats {
		return r.d.postCats
	}
	return r.d.postTags
}

func (r memTerms) Ensure(_ context.Context, names []string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, name := range db.NormalizeTermNames(names) {
		slug := content.TermSlug(name)
		var found uuid.UUID
		for _, t := range r.table() {
			if t.Name == name || t.Slug == slug {
				found = t.ID
				break
			}
		}
		if found == uuid.Nil {
			rec := termRec{ID: uuid.New(), Name: name, Slug: slug}
			if r.cats {
				rec.Color = models.DefaultCategoryColor
			}
			r.table()[rec.ID] = rec
			found = rec.ID
		}
		if !containsID(ids, found) {
			ids = append(ids, found)
		}
	}
	return ids, nil
}

func (r memTerms) IDBySlug(_ context.Context, slug string) (uuid.UUID, bool, error) {
	for _, t := range r.table() {
		if t.Slug == slug {
			return t.ID, true, nil
		}
	}
	return uuid.Nil, false, nil
}

func (r memTerms) AdjustPostCounts(_ context.Context, ids []uuid.UUID, delta int) error {
	for _, id := range ids {
		t, ok := r.table()[id]
		if !ok {
			continue
		}
		t.PostCount = clamp(t.PostCount + int64(delta))
		r.table()[id] = t
	}
	return nil
}

func (r memTerms) Recount(_ context.Context) (int64, error) {
	counts := map[uuid.UUID]int64{}
	for _, ids := range r.joins() {
		for _, id := range ids {
			counts[id]++
		}
	}
	var fixed int64
	for id, t := range r.table() {
		if t.PostCount != counts[id] {
			t.PostCount = counts[id]
			r.table()[id] = t
			fixed++
		}
	}
	return fixed, nil
}

type memCategories struct{ memTerms }

func toCategory(t termRec) models.Category {
	return models.Category{ID: t.ID, Name: t.Name, Slug: t.Slug, Description: t.Description, Color: t.Color, PostCount: t.PostCount}
}

func (r memCategories) List(_ context.Context) ([]models.Category, error) {
	out := []models.Category{}
	for _, t := range r.table() {
		out = append(out, toCategory(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memCategories) GetBySlug(_ context.Context, slug string) (*models.Category, error) {
	for _, t := range r.table() {
		if t.Slug == slug {
			c := toCategory(t)
			return &c, nil
		}
	}
	return nil, nil
}

func (r memCategories) Upsert(ctx context.Context, category *models.Category) (*models.Category, error) {
	ids, err := r.Ensure(ctx, []string{category.Name})
	if err != nil {
		return nil, err
	}
	t := r.table()[ids[0]]
	if category.Description != "" {
		t.Description = category.Description
	}
	if category.Color != "" {
		t.Color = category.Color
	}
	r.table()[t.ID] = t
	c := toCategory(t)
	return &c, nil
}

type memTags struct{ memTerms }

func (r memTags) List(_ context.Context) ([]models.Tag, error) {
	out := []models.Tag{}
	for _, t := range r.table() {
		out = append(out, models.Tag{ID: t.ID, Name: t.Name, Slug: t.Slug, PostCount: t.PostCount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PostCount != out[j].PostCount {
			return out[i].PostCount > out[j].PostCount
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// comments

type memComments struct{ d *memData }

func (r memComments) GetByID(_ context.Context, id uuid.UUID) (*models.Comment, error) {
	c, ok := r.d.comments[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r memComments) ListByPost(_ context.Context, postID uuid.UUID, offset, limit int) ([]models.Comment, int64, error) {
	var all []models.Comment
	for _, c := range r.d.comments {
		if c.PostID == postID && c.IsApproved {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	total := int64(len(all))
	if offset > len(all) {
		offset = len(all)
	}
	end := len(all)
	if offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (r memComments) Create(_ context.Context, comment *models.Comment) error {
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	comment.CreatedAt = r.d.tick()
	comment.UpdatedAt = comment.CreatedAt
	stored := *comment
	stored.Author, stored.Post, stored.Parent = nil, nil, nil
	r.d.comments[comment.ID] = stored
	return nil
}

func (r memComments) DeleteTree(_ context.Context, id uuid.UUID) (int64, error) {
	if _, ok := r.d.comments[id]; !ok {
		return 0, nil
	}
	queue := []uuid.UUID{id}
	var n int64
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for cid, c := range r.d.comments {
			if c.ParentID != nil && *c.ParentID == cur {
				queue = append(queue, cid)
			}
		}
		delete(r.d.comments, cur)
		n++
	}
	return n, nil
}

func (r memComments) DeleteByPost(_ context.Context, postID uuid.UUID) (int64, error) {
	var n int64
	for id, c := range r.d.comments {
		if c.PostID == postID {
			delete(r.d.comments, id)
			n++
		}
	}
	return n, nil
}

func (r memComments) RecountPosts(_ context.Context) (int64, error) {
	counts := map[uuid.UUID]int64{}
	for _, c := range r.d.comments {
		counts[c.PostID]++
	}
	var fixed int64
	for id, p := range r.d.posts {
		if p.CommentCount != counts[id] {
			p.CommentCount = counts[id]
			r.d.posts[id] = p
			fixed++
		}
	}
	return fixed, nil
}
