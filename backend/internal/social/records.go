package social

import (
	"context"
	"errors"

	"lookbook/backend/internal/constants"
	"lookbook/backend/internal/docstore"
	"lookbook/backend/internal/model"
	apperrors "lookbook/backend/pkg/errors"
)

// records wraps the document store with typed reads and error classification.
type records struct {
	store docstore.Store
}

func wrapStoreErr(op, collection, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewContextCancelled(op+" "+collection, err)
	}
	return apperrors.NewStoreOperationFailed(op, collection, id, err)
}

// isNotFound reports whether a wrapped store call hit a missing document.
func isNotFound(err error) bool {
	return errors.Is(err, docstore.ErrNotFound)
}

func (r records) account(ctx context.Context, id string) (*model.Account, error) {
	doc, err := r.store.Get(ctx, constants.CollectionAccounts, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperrors.NewAccountNotFound(id)
	}
	if err != nil {
		return nil, wrapStoreErr("get", constants.CollectionAccounts, id, err)
	}
	var a model.Account
	if err := docstore.Decode(doc, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r records) post(ctx context.Context, id string) (*model.Post, error) {
	doc, err := r.store.Get(ctx, constants.CollectionPosts, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperrors.NewPostNotFound(id)
	}
	if err != nil {
		return nil, wrapStoreErr("get", constants.CollectionPosts, id, err)
	}
	var p model.Post
	if err := docstore.Decode(doc, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r records) board(ctx context.Context, id string) (*model.InspoBoard, error) {
	doc, err := r.store.Get(ctx, constants.CollectionInspoBoards, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperrors.NewBoardNotFound(id)
	}
	if err != nil {
		return nil, wrapStoreErr("get", constants.CollectionInspoBoards, id, err)
	}
	var b model.InspoBoard
	if err := docstore.Decode(doc, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r records) exists(ctx context.Context, collection, id string) (bool, error) {
	_, err := r.store.Get(ctx, collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrapStoreErr("get", collection, id, err)
	}
	return true, nil
}

func (r records) update(ctx context.Context, collection, id string, ops ...docstore.FieldOp) error {
	return wrapStoreErr("update", collection, id, r.store.Update(ctx, collection, id, ops...))
}

func (r records) put(ctx context.Context, collection, id string, v any) error {
	doc, err := docstore.Encode(v)
	if err != nil {
		return err
	}
	return wrapStoreErr("put", collection, id, r.store.Put(ctx, collection, id, doc))
}

func (r records) add(ctx context.Context, collection string, v any) (string, error) {
	doc, err := docstore.Encode(v)
	if err != nil {
		return "", err
	}
	id, err := r.store.Add(ctx, collection, doc)
	return id, wrapStoreErr("add", collection, "", err)
}

func (r records) delete(ctx context.Context, collection, id string) error {
	return wrapStoreErr("delete", collection, id, r.store.Delete(ctx, collection, id))
}

func (r records) query(ctx context.Context, q docstore.Query) ([]docstore.Doc, error) {
	docs, err := r.store.Query(ctx, q)
	return docs, wrapStoreErr("query", q.Collection, "", err)
}

func queryAll[T any](ctx context.Context, r records, q docstore.Query) ([]T, error) {
	docs, err := r.query(ctx, q)
	if err != nil {
		return nil, err
	}
	return docstore.DecodeAll[T](docs)
}

// chunk splits ids into slices no longer than the store's "in" filter limit.
func chunk(ids []string) [][]string {
	var out [][]string
	for len(ids) > 0 {
		n := len(ids)
		if n > constants.MaxInFilterValues {
			n = constants.MaxInFilterValues
		}
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	return out
}
