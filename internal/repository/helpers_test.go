package repository_test

import "tourdesk/pkg/pagination"

func paginationAll() pagination.Params { return pagination.New(1, pagination.MaxLimit) }
