package httptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sotags/backend/internal/config"
	"sotags/backend/internal/domain"
	"sotags/backend/internal/health"
	"sotags/backend/internal/monitoring"
	"sotags/backend/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockTagService 模拟标签服务
type MockTagService struct {
	mock.Mock
}

func (m *MockTagService) List(ctx context.Context, params domain.ListParams) ([]domain.TagView, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TagView), args.Error(1)
}

func (m *MockTagService) Refresh(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockTagService) GetTag(ctx context.Context, id uint) (*domain.Tag, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tag), args.Error(1)
}

func newTestRouter(svc TagService) *gin.Engine {
	return NewRouter(RouterDependencies{
		Config:     &config.Config{CORS: config.CORSConfig{AllowedOrigins: []string{"*"}}},
		TagService: svc,
	})
}

func doGet(r http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestListTags(t *testing.T) {
	views := []domain.TagView{
		{Name: ".Net", Count: 10000, Percent: 50},
		{Name: "ASP", Count: 5000, Percent: 25, HasSynonyms: true},
	}

	t.Run("默认参数返回 JSON 数组", func(t *testing.T) {
		svc := new(MockTagService)
		svc.On("List", mock.Anything, domain.DefaultListParams()).Return(views, nil)

		rec := doGet(newTestRouter(svc), "/v1/tags")
		require.Equal(t, http.StatusOK, rec.Code)

		var body []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body, 2)
		assert.Equal(t, ".Net", body[0]["name"])
		assert.Equal(t, 50.0, body[0]["percent"])
		assert.Equal(t, true, body[1]["hasSynonyms"])
		assert.Contains(t, body[1], "isModeratorOnly")
		assert.Contains(t, body[1], "isRequired")
	})

	t.Run("解析排序参数", func(t *testing.T) {
		svc := new(MockTagService)
		svc.On("List", mock.Anything, domain.ListParams{Sort: domain.SortByPercent, Order: domain.OrderDesc}).
			Return(views, nil)

		rec := doGet(newTestRouter(svc), "/v1/tags?sort=Percent&order=DESC")
		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("无效排序字段", func(t *testing.T) {
		svc := new(MockTagService)

		rec := doGet(newTestRouter(svc), "/v1/tags?sort=count")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, MsgInvalidSortField, decodeResponse(t, rec).Msg)
		svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	})

	t.Run("无效排序方向", func(t *testing.T) {
		rec := doGet(newTestRouter(new(MockTagService)), "/v1/tags?order=up")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, CodeBadRequest, decodeResponse(t, rec).Code)
	})

	t.Run("错误映射", func(t *testing.T) {
		cases := []struct {
			name   string
			err    error
			status int
		}{
			{"标签源不可用", fmt.Errorf("%w: HTTP 503", domain.ErrSourceUnavailable), http.StatusBadGateway},
			{"存储不可用", fmt.Errorf("%w: list tags", domain.ErrStorageUnavailable), http.StatusServiceUnavailable},
			{"未知错误", fmt.Errorf("unexpected"), http.StatusInternalServerError},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				svc := new(MockTagService)
				svc.On("List", mock.Anything, mock.Anything).Return(nil, tc.err)

				rec := doGet(newTestRouter(svc), "/v1/tags")
				assert.Equal(t, tc.status, rec.Code)
				resp := decodeResponse(t, rec)
				assert.Equal(t, tc.status, resp.Code)
				assert.NotEmpty(t, resp.Msg)
				assert.NotContains(t, rec.Body.String(), "HTTP 503")
			})
		}
	})
}

func TestFetchTags(t *testing.T) {
	t.Run("返回刷新条数", func(t *testing.T) {
		svc := new(MockTagService)
		svc.On("Refresh", mock.Anything).Return(1000, nil)

		rec := doGet(newTestRouter(svc), "/v1/tags/fetch")
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decodeResponse(t, rec)
		assert.Equal(t, CodeSuccess, resp.Code)
		assert.Equal(t, MsgRefreshSucceeded, resp.Msg)
		assert.Equal(t, map[string]interface{}{"count": 1000.0}, resp.Data)
		svc.AssertNotCalled(t, "GetTag", mock.Anything, mock.Anything)
	})

	t.Run("标签源失败返回 502", func(t *testing.T) {
		svc := new(MockTagService)
		svc.On("Refresh", mock.Anything).Return(0, domain.ErrSourceUnavailable)

		rec := doGet(newTestRouter(svc), "/v1/tags/fetch")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, MsgSourceUnavailable, decodeResponse(t, rec).Msg)
	})
}

func TestGetTag(t *testing.T) {
	t.Run("存在", func(t *testing.T) {
		svc := new(MockTagService)
		svc.On("GetTag", mock.Anything, uint(7)).Return(&domain.Tag{ID: 7, Name: "go", Count: 42}, nil)

		rec := doGet(newTestRouter(svc), "/v1/tags/7")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"name":"go"`)
	})

	t.Run("不存在", func(t *testing.T) {
		svc := new(MockTagService)
		svc.On("GetTag", mock.Anything, uint(8)).Return(nil, domain.ErrTagNotFound)

		rec := doGet(newTestRouter(svc), "/v1/tags/8")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("ID 格式无效", func(t *testing.T) {
		rec := doGet(newTestRouter(new(MockTagService)), "/v1/tags/abc")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, MsgInvalidTagID, decodeResponse(t, rec).Msg)
	})
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	router := NewRouter(RouterDependencies{
		Config:        &config.Config{CORS: config.CORSConfig{AllowedOrigins: []string{"https://example.com"}}},
		TagService:    new(MockTagService),
		HealthChecker: health.NewHealthChecker(memory.NewStore(), nil, nil),
		Metrics:       monitoring.NewMetrics(reg),
	})

	t.Run("健康检查", func(t *testing.T) {
		rec := doGet(router, "/health")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)

		assert.Equal(t, http.StatusOK, doGet(router, "/health/live").Code)
		assert.Equal(t, http.StatusOK, doGet(router, "/health/ready").Code)
	})

	t.Run("指标端点", func(t *testing.T) {
		doGet(router, "/health")
		rec := doGet(router, "/metrics")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "sotags_http_requests_total")
	})

	t.Run("响应带请求 ID", func(t *testing.T) {
		rec := doGet(router, "/health")
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})
}

func TestClassifyError(t *testing.T) {
	status, msg := ClassifyError(fmt.Errorf("wrap: %w", domain.ErrStorageUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, MsgStorageUnavailable, msg)

	assert.Equal(t, MsgInternalError, GetErrorMessage(fmt.Errorf("other")))
}
